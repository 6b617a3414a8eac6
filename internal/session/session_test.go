package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxdesk/voxdesk/internal/host"
	"github.com/voxdesk/voxdesk/internal/observe"
	"github.com/voxdesk/voxdesk/pkg/audio"
	"github.com/voxdesk/voxdesk/pkg/audio/playback"
	"github.com/voxdesk/voxdesk/pkg/live"
	livemock "github.com/voxdesk/voxdesk/pkg/live/mock"
)

func testMetrics() *observe.Metrics {
	// The global meter provider defaults to a no-op implementation, so the
	// shared instance is safe across parallel tests.
	return observe.DefaultMetrics()
}

// fakeCapture is a channel-backed CaptureSource.
type fakeCapture struct {
	frames chan audio.Frame

	mu     sync.Mutex
	closed bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{frames: make(chan audio.Frame, 8)}
}

func (c *fakeCapture) Frames() <-chan audio.Frame { return c.frames }

func (c *fakeCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeCapture) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeSink records playback traffic.
type fakeSink struct {
	mu       sync.Mutex
	enqueues int
	clears   int
	closed   bool
}

func (s *fakeSink) Enqueue(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueues++
	return nil
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) clearCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

// harness bundles a Manager with handles to all its fakes.
type harness struct {
	mgr      *Manager
	provider *livemock.Provider
	sink     *fakeSink

	mu          sync.Mutex
	captures    []*fakeCapture
	transcripts [][]Entry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider: &livemock.Provider{},
		sink:     &fakeSink{},
	}
	h.mgr = NewManager(Config{
		Provider: h.provider,
		Agent:    live.SessionConfig{Instructions: "You are a desktop assistant.", Voice: "Puck"},
		Host:     host.NewRegistry([]string{"Chrome", "Terminal"}),
		OpenCapture: func() (CaptureSource, error) {
			c := newFakeCapture()
			h.mu.Lock()
			h.captures = append(h.captures, c)
			h.mu.Unlock()
			return c, nil
		},
		NewSink: func() (playback.Sink, error) { return h.sink, nil },
		OnTranscript: func(entries []Entry) {
			h.mu.Lock()
			h.transcripts = append(h.transcripts, entries)
			h.mu.Unlock()
		},
		Metrics: testMetrics(),
	})
	t.Cleanup(func() { _ = h.mgr.Stop() })
	return h
}

func (h *harness) capture(t *testing.T, i int) *fakeCapture {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if i >= len(h.captures) {
		t.Fatalf("capture %d not opened (have %d)", i, len(h.captures))
	}
	return h.captures[i]
}

func (h *harness) session(t *testing.T, i int) *livemock.Session {
	t.Helper()
	if i >= h.provider.ConnectCount() {
		t.Fatalf("session %d not connected (have %d)", i, h.provider.ConnectCount())
	}
	return h.provider.Sessions[i]
}

func (h *harness) transcriptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transcripts)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStart_TransitionsToListening(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if got := h.mgr.State(); got != StateIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := h.mgr.State(); got != StateListening {
		t.Errorf("state after Start = %v, want listening", got)
	}

	// Tool declarations must be offered at setup.
	if len(h.provider.LastConfig.Tools) != 3 {
		t.Errorf("setup tools = %d, want 3", len(h.provider.LastConfig.Tools))
	}
}

func TestStart_WhileActiveReturnsErrSessionActive(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := h.mgr.Start(context.Background())
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Start = %v, want ErrSessionActive", err)
	}
	// The running session must be untouched.
	if h.provider.ConnectCount() != 1 {
		t.Errorf("connect count = %d, want 1", h.provider.ConnectCount())
	}
	if h.capture(t, 0).isClosed() {
		t.Error("active capture was closed by rejected Start")
	}
}

func TestStart_ConnectFailureReleasesCapture(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.ConnectErr = errors.New("dial refused")

	err := h.mgr.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded despite connect failure")
	}
	if got := h.mgr.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if !h.capture(t, 0).isClosed() {
		t.Error("capture not released after connect failure")
	}
}

func TestCaptureFramesForwardedToAgent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	frame := audio.Frame{Data: []byte{1, 2, 3, 4}, SampleRate: audio.CaptureRate, Channels: 1}
	h.capture(t, 0).frames <- frame

	sess := h.session(t, 0)
	waitFor(t, "frame forwarded", func() bool { return len(sess.SentFrames()) == 1 })
}

func TestToolCall_RoundTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess := h.session(t, 0)

	sess.Emit(live.ToolCallRequest{Call: live.ToolCall{
		ID:   "42",
		Name: ToolOpenApp,
		Args: map[string]any{"appName": "Chrome"},
	}})

	waitFor(t, "tool result", func() bool { return len(sess.SentResults()) == 1 })
	result := sess.SentResults()[0]
	if result.ID != "42" {
		t.Errorf("result ID = %q, want 42", result.ID)
	}
	if !strings.Contains(result.Result, "Chrome") {
		t.Errorf("result = %q, want mention of Chrome", result.Result)
	}
}

func TestUnknownTool_NoResponseSent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess := h.session(t, 0)

	sess.Emit(live.ToolCallRequest{Call: live.ToolCall{ID: "1", Name: "rebootHost"}})
	// A follow-up known call proves the unknown one was skipped, not queued.
	sess.Emit(live.ToolCallRequest{Call: live.ToolCall{ID: "2", Name: ToolGetAppList}})

	waitFor(t, "known tool result", func() bool { return len(sess.SentResults()) == 1 })
	if got := sess.SentResults()[0].ID; got != "2" {
		t.Errorf("result ID = %q, want 2", got)
	}
}

func TestTurnComplete_DeliversOrderedTranscript(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess := h.session(t, 0)

	sess.Emit(live.PartialTranscript{Speaker: live.SpeakerAgent, Text: "Opening Chrome."})
	sess.Emit(live.PartialTranscript{Speaker: live.SpeakerUser, Text: "open chrome"})
	sess.Emit(live.TurnComplete{})

	waitFor(t, "transcript delivery", func() bool { return h.transcriptCount() == 1 })

	h.mu.Lock()
	entries := h.transcripts[0]
	h.mu.Unlock()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Speaker != live.SpeakerUser {
		t.Errorf("entries[0].Speaker = %v, want user", entries[0].Speaker)
	}
	if entries[1].Speaker != live.SpeakerAgent {
		t.Errorf("entries[1].Speaker = %v, want agent", entries[1].Speaker)
	}

	waitFor(t, "return to listening", func() bool { return h.mgr.State() == StateListening })
}

func TestAudioChunk_MovesToProcessing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess := h.session(t, 0)

	sess.Emit(live.AudioChunk{PCM: make([]byte, 480)})
	waitFor(t, "processing state", func() bool { return h.mgr.State() == StateProcessing })

	sess.Emit(live.TurnComplete{})
	waitFor(t, "listening state", func() bool { return h.mgr.State() == StateListening })
}

func TestInterrupted_FlushesPlaybackAndTranscript(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess := h.session(t, 0)

	sess.Emit(live.AudioChunk{PCM: make([]byte, 48000)})
	sess.Emit(live.PartialTranscript{Speaker: live.SpeakerAgent, Text: "Let me tell you about"})
	sess.Emit(live.Interrupted{})

	waitFor(t, "playback flush", func() bool { return h.sink.clearCount() >= 1 })
	waitFor(t, "listening state", func() bool { return h.mgr.State() == StateListening })

	// The interrupted half-response must not leak into the next turn.
	sess.Emit(live.PartialTranscript{Speaker: live.SpeakerUser, Text: "never mind"})
	sess.Emit(live.TurnComplete{})
	waitFor(t, "transcript delivery", func() bool { return h.transcriptCount() == 1 })

	h.mu.Lock()
	entries := h.transcripts[0]
	h.mu.Unlock()
	if len(entries) != 1 || entries[0].Speaker != live.SpeakerUser {
		t.Errorf("entries = %+v, want only the user utterance", entries)
	}
}

func TestStop_Idempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	// Stop on an idle manager is a no-op.
	if err := h.mgr.Stop(); err != nil {
		t.Fatalf("Stop while idle: %v", err)
	}

	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.mgr.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := h.mgr.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if got := h.mgr.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	waitFor(t, "capture release", func() bool { return h.capture(t, 0).isClosed() })
	waitFor(t, "session close", func() bool { return h.session(t, 0).Closed() })
}

func TestStartStopStart_ReacquiresResources(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := h.mgr.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if h.provider.ConnectCount() != 2 {
		t.Errorf("connect count = %d, want 2", h.provider.ConnectCount())
	}
	if h.capture(t, 1).isClosed() {
		t.Error("fresh capture is already closed")
	}
	if !h.capture(t, 0).isClosed() {
		t.Error("first capture leaked")
	}
}

func TestTransportFailure_TearsDownSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.session(t, 0).Fail(errors.New("connection reset"))

	waitFor(t, "idle state", func() bool { return h.mgr.State() == StateIdle })
	waitFor(t, "capture release", func() bool { return h.capture(t, 0).isClosed() })

	// The manager must accept a fresh Start after the failure.
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
}

func TestSessionErrorEvent_TearsDownSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.session(t, 0).Emit(live.SessionError{Err: errors.New("quota exceeded")})

	waitFor(t, "idle state", func() bool { return h.mgr.State() == StateIdle })
	waitFor(t, "session close", func() bool { return h.session(t, 0).Closed() })
}
