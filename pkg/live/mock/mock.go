// Package mock provides scriptable in-memory implementations of the live
// interfaces for tests that need a session without a network connection.
package mock

import (
	"context"
	"sync"

	"github.com/voxdesk/voxdesk/pkg/audio"
	"github.com/voxdesk/voxdesk/pkg/live"
)

// Compile-time interface assertions.
var _ live.Provider = (*Provider)(nil)
var _ live.Session = (*Session)(nil)

// Provider returns a pre-built Session from Connect, or a scripted error.
type Provider struct {
	mu sync.Mutex

	// ConnectErr, when non-nil, is returned by Connect instead of a session.
	ConnectErr error

	// Sessions receives one entry per successful Connect call.
	Sessions []*Session

	// LastConfig records the configuration of the most recent Connect.
	LastConfig live.SessionConfig
}

// Connect returns a fresh scriptable session, or ConnectErr if set.
func (p *Provider) Connect(_ context.Context, cfg live.SessionConfig) (live.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	s := NewSession()
	p.Sessions = append(p.Sessions, s)
	p.LastConfig = cfg
	return s, nil
}

// ConnectCount reports how many sessions the provider has handed out.
func (p *Provider) ConnectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Sessions)
}

// Session is a scriptable live.Session. Tests push events with Emit and
// inspect what the orchestrator sent with SentFrames / SentResults.
type Session struct {
	mu sync.Mutex

	events chan live.ServerEvent
	closed bool
	err    error

	frames  []audio.Frame
	results []live.ToolResult

	// SendAudioErr, when non-nil, is returned by SendAudio.
	SendAudioErr error
}

// NewSession creates an open mock session with a buffered event stream.
func NewSession() *Session {
	return &Session{events: make(chan live.ServerEvent, 64)}
}

// Emit pushes one server event into the stream.
func (s *Session) Emit(ev live.ServerEvent) {
	s.events <- ev
}

// Fail records a terminal error and ends the event stream, imitating a
// mid-session transport failure.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()

	if !alreadyClosed {
		close(s.events)
	}
}

func (s *Session) SendAudio(frame audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *Session) SendToolResult(result live.ToolResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *Session) Events() <-chan live.ServerEvent { return s.events }

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the event stream. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// Closed reports whether Close (or Fail) has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SentFrames returns a copy of every frame passed to SendAudio.
func (s *Session) SentFrames() []audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// SentResults returns a copy of every result passed to SendToolResult.
func (s *Session) SentResults() []live.ToolResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]live.ToolResult, len(s.results))
	copy(out, s.results)
	return out
}
