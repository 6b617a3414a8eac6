// Package session implements the voice session lifecycle: microphone
// capture, the live agent connection, playback scheduling, transcript
// accumulation, and tool dispatch.
//
// A [Manager] owns at most one active session. All session I/O is serialized
// through a single actor goroutine so that playback scheduling, transcript
// state, and tool dispatch never race: capture frames, agent events, and
// teardown all pass through the same loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxdesk/voxdesk/internal/host"
	"github.com/voxdesk/voxdesk/internal/observe"
	"github.com/voxdesk/voxdesk/pkg/audio"
	"github.com/voxdesk/voxdesk/pkg/audio/playback"
	"github.com/voxdesk/voxdesk/pkg/live"
)

// ErrSessionActive is returned by [Manager.Start] when a session is already
// running. The existing session is left untouched.
var ErrSessionActive = errors.New("session: already active")

// CaptureSource yields encoded microphone frames. Implemented by
// [capture.Capture]; tests substitute a channel-backed fake.
type CaptureSource interface {
	Frames() <-chan audio.Frame
	Close() error
}

// Config wires a [Manager] to its collaborators.
type Config struct {
	// Provider connects sessions to the remote agent.
	Provider live.Provider

	// Agent is the session configuration sent at connection setup. The
	// manager fills in the tool declarations.
	Agent live.SessionConfig

	// Host is the capability surface tool calls are dispatched to.
	Host host.Capabilities

	// OpenCapture acquires the microphone. Called once per session start;
	// the source is closed when the session ends.
	OpenCapture func() (CaptureSource, error)

	// NewSink creates the playback output for a session. Called once per
	// session start; the scheduler closes the sink when the session ends.
	NewSink func() (playback.Sink, error)

	// OnTranscript, when non-nil, receives the finalized entries of each
	// completed turn. It is invoked from the session actor goroutine and
	// must not block.
	OnTranscript func([]Entry)

	// Metrics overrides the metrics instance. Nil uses
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Manager runs voice sessions. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	metrics *observe.Metrics

	mu     sync.Mutex
	state  State
	active *activeSession
}

// activeSession bundles the resources of one running session. Resources are
// released exactly once via shutdown, whether teardown is initiated by Stop,
// by a transport failure, or by capture death.
type activeSession struct {
	mgr       *Manager
	sess      live.Session
	capture   CaptureSource
	sched     *playback.Scheduler
	disp      dispatcher
	acc       accumulator
	startedAt time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	shutOnce sync.Once
}

// NewManager returns a Manager in [StateIdle]. No resources are acquired
// until [Manager.Start].
func NewManager(cfg Config) *Manager {
	m := &Manager{cfg: cfg, metrics: cfg.Metrics}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start acquires the microphone, connects to the agent, and begins streaming.
// On success the manager transitions to [StateListening]. If a session is
// already active, Start returns [ErrSessionActive] without touching it. Any
// acquisition failure releases everything acquired so far and leaves the
// manager in [StateIdle].
//
// ctx bounds connection setup only; the session itself runs until [Manager.Stop]
// or a terminal transport error.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return ErrSessionActive
	}

	mic, err := m.cfg.OpenCapture()
	if err != nil {
		return fmt.Errorf("session: open capture: %w", err)
	}

	agentCfg := m.cfg.Agent
	agentCfg.Tools = ToolDeclarations()
	sess, err := m.cfg.Provider.Connect(ctx, agentCfg)
	if err != nil {
		_ = mic.Close()
		return fmt.Errorf("session: connect agent: %w", err)
	}

	sink, err := m.cfg.NewSink()
	if err != nil {
		_ = sess.Close()
		_ = mic.Close()
		return fmt.Errorf("session: open playback: %w", err)
	}

	sched := playback.NewScheduler(sink, audio.PlaybackRate,
		playback.WithActiveGauge(func(delta int64) {
			m.metrics.ActivePlaybackHandles.Add(context.Background(), delta)
		}),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	a := &activeSession{
		mgr:       m,
		sess:      sess,
		capture:   mic,
		sched:     sched,
		disp:      dispatcher{caps: m.cfg.Host, metrics: m.metrics},
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.active = a
	m.state = StateListening
	m.metrics.ActiveSessions.Add(runCtx, 1)
	slog.Info("session started", "state", m.state)

	go a.run(runCtx)
	return nil
}

// Stop ends the active session and releases its resources. Stopping an idle
// manager is a no-op. Stop does not wait for in-flight playback; scheduled
// audio is discarded.
func (m *Manager) Stop() error {
	m.mu.Lock()
	a := m.active
	m.active = nil
	m.state = StateIdle
	m.mu.Unlock()

	if a == nil {
		return nil
	}

	a.cancel()
	a.shutdown("stop requested")
	return nil
}

// Wait blocks until the active session's actor goroutine has exited. Returns
// immediately when no session is running.
func (m *Manager) Wait() {
	m.mu.Lock()
	a := m.active
	m.mu.Unlock()
	if a != nil {
		<-a.done
	}
}

// detach clears a from the manager if it is still the current session.
// A newer session started after a's teardown must not be disturbed.
func (m *Manager) detach(a *activeSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == a {
		m.active = nil
		m.state = StateIdle
	}
}

// setState moves the manager to s if a is still the current session.
func (m *Manager) setState(a *activeSession, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == a && m.state != s {
		slog.Debug("session state", "from", m.state, "to", s)
		m.state = s
	}
}

// run is the session actor loop. It is the only goroutine that touches the
// scheduler, the accumulator, and the dispatcher.
func (a *activeSession) run(ctx context.Context) {
	defer close(a.done)
	defer a.shutdown("session ended")

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-a.capture.Frames():
			if !ok {
				slog.Error("capture stream closed unexpectedly")
				return
			}
			if err := a.sess.SendAudio(frame); err != nil {
				if ctx.Err() == nil {
					slog.Error("send audio failed", "err", err)
				}
				return
			}

		case ev, ok := <-a.sess.Events():
			if !ok {
				if err := a.sess.Err(); err != nil && ctx.Err() == nil {
					slog.Error("agent connection lost", "err", err)
				}
				return
			}
			if !a.handleEvent(ctx, ev) {
				return
			}
		}
	}
}

// handleEvent applies one agent event. Returns false when the event is
// terminal for the session.
func (a *activeSession) handleEvent(ctx context.Context, ev live.ServerEvent) bool {
	a.mgr.metrics.RecordServerEvent(ctx, eventKind(ev))

	switch ev := ev.(type) {
	case live.AudioChunk:
		if err := a.sched.Schedule(ev.PCM); err != nil {
			slog.Warn("schedule playback failed", "err", err)
		}
		a.mgr.setState(a, StateProcessing)

	case live.PartialTranscript:
		a.acc.add(ev.Speaker, ev.Text)
		if ev.Speaker == live.SpeakerAgent {
			a.mgr.setState(a, StateProcessing)
		}

	case live.TurnComplete:
		entries := a.acc.finalize()
		if len(entries) > 0 && a.mgr.cfg.OnTranscript != nil {
			a.mgr.cfg.OnTranscript(entries)
		}
		a.mgr.setState(a, StateListening)

	case live.Interrupted:
		// Barge-in: the user spoke over the agent. Everything queued is
		// stale, as is any half-accumulated response text.
		a.sched.Flush()
		a.acc.reset()
		a.mgr.setState(a, StateListening)

	case live.ToolCallRequest:
		result, ok := a.disp.Dispatch(ctx, ev.Call)
		if !ok {
			return true
		}
		if err := a.sess.SendToolResult(result); err != nil {
			slog.Error("send tool result failed", "err", err, "call_id", result.ID)
			return false
		}

	case live.SessionError:
		slog.Error("agent session error", "err", ev.Err)
		return false
	}
	return true
}

// shutdown releases the session's resources exactly once and detaches it
// from the manager.
func (a *activeSession) shutdown(reason string) {
	a.shutOnce.Do(func() {
		a.mgr.detach(a)
		a.cancel()
		if err := a.sess.Close(); err != nil {
			slog.Warn("close agent session", "err", err)
		}
		if err := a.capture.Close(); err != nil {
			slog.Warn("close capture", "err", err)
		}
		_ = a.sched.Close()

		ctx := context.Background()
		a.mgr.metrics.ActiveSessions.Add(ctx, -1)
		a.mgr.metrics.SessionDuration.Record(ctx, time.Since(a.startedAt).Seconds())
		slog.Info("session closed", "reason", reason, "duration", time.Since(a.startedAt))
	})
}

// eventKind labels agent events for metrics.
func eventKind(ev live.ServerEvent) string {
	switch ev.(type) {
	case live.AudioChunk:
		return "audio"
	case live.PartialTranscript:
		return "transcript"
	case live.TurnComplete:
		return "turn_complete"
	case live.Interrupted:
		return "interrupted"
	case live.ToolCallRequest:
		return "tool_call"
	case live.SessionError:
		return "error"
	default:
		return "unknown"
	}
}
