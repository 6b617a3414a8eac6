// Package playback converts inbound agent audio chunks into precisely
// time-ordered, non-overlapping playback with immediate flush on barge-in.
//
// The scheduler keeps a monotonic cursor: each chunk is scheduled at
// max(cursor, now) and advances the cursor by its own duration, so chunks
// arriving in rapid bursts queue back-to-back with no audible gap and no
// overlap — the cursor absorbs arrival jitter. An interruption hard-stops
// every in-flight handle, clears the registry, and resets the cursor so the
// next chunk plays immediately.
package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxdesk/voxdesk/pkg/audio"
)

// ErrClosed is returned by Schedule after the scheduler has been closed.
var ErrClosed = errors.New("playback: scheduler closed")

// Sink is the audio output a [Scheduler] feeds. Enqueue appends PCM to the
// device buffer for immediate playback; Clear discards whatever is buffered
// but not yet played. Implementations must be safe for concurrent use.
type Sink interface {
	Enqueue(pcm []byte) error
	Clear()
	Close() error
}

// handle is one scheduled, in-flight playback unit. It lives in the active
// registry from scheduling until natural completion or flush.
type handle struct {
	id       string
	startAt  time.Time
	duration time.Duration
	gen      uint64

	startTimer *time.Timer
	doneTimer  *time.Timer
}

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source. Tests use this to pin
// "now"; production code never needs it.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithActiveGauge registers a callback invoked with +1 when a handle enters
// the active registry and -1 when it leaves, for metrics wiring.
func WithActiveGauge(gauge func(delta int64)) Option {
	return func(s *Scheduler) { s.gauge = gauge }
}

// Scheduler owns the playback cursor and the active-handle registry.
// All exported methods are safe for concurrent use, and Flush is atomic with
// respect to Schedule: a chunk is either fully scheduled before the flush
// (and gets stopped by it) or fully after it (and plays at now).
type Scheduler struct {
	sink       Sink
	sampleRate int
	now        func() time.Time
	gauge      func(delta int64)

	mu     sync.Mutex
	cursor time.Time
	active map[string]*handle
	gen    uint64
	closed bool
}

// NewScheduler creates a Scheduler feeding sink with mono PCM at sampleRate.
func NewScheduler(sink Sink, sampleRate int, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:       sink,
		sampleRate: sampleRate,
		now:        time.Now,
		active:     make(map[string]*handle),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule queues one decoded PCM chunk for gapless playback. Empty chunks
// are ignored.
func (s *Scheduler) Schedule(pcm []byte) error {
	d := audio.PCMDuration(pcm, s.sampleRate, 1)
	if d == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	now := s.now()
	startAt := s.cursor
	if startAt.Before(now) {
		startAt = now
	}
	s.cursor = startAt.Add(d)

	h := &handle{
		id:       uuid.NewString(),
		startAt:  startAt,
		duration: d,
		gen:      s.gen,
	}
	s.active[h.id] = h
	if s.gauge != nil {
		s.gauge(1)
	}

	h.startTimer = time.AfterFunc(startAt.Sub(now), func() { s.begin(h, pcm) })
	return nil
}

// begin fires at a handle's scheduled start: it pushes the PCM into the sink
// and arms the completion timer. A handle from a flushed generation is stale
// and does nothing.
func (s *Scheduler) begin(h *handle, pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.gen != s.gen {
		return
	}
	_ = s.sink.Enqueue(pcm)
	h.doneTimer = time.AfterFunc(h.duration, func() { s.complete(h) })
}

// complete removes a handle from the registry when playback naturally
// finishes.
func (s *Scheduler) complete(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.gen != s.gen {
		return
	}
	if _, ok := s.active[h.id]; ok {
		delete(s.active, h.id)
		if s.gauge != nil {
			s.gauge(-1)
		}
	}
}

// Flush hard-stops every active handle, discards buffered sink audio, clears
// the registry, and resets the cursor so the next chunk schedules at now.
// Atomic with respect to Schedule.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Scheduler) flushLocked() {
	s.gen++
	for id, h := range s.active {
		if h.startTimer != nil {
			h.startTimer.Stop()
		}
		if h.doneTimer != nil {
			h.doneTimer.Stop()
		}
		delete(s.active, id)
		if s.gauge != nil {
			s.gauge(-1)
		}
	}
	s.sink.Clear()
	s.cursor = time.Time{}
}

// Active reports the number of in-flight playback handles.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close flushes outstanding playback and closes the sink. Idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.flushLocked()
	s.mu.Unlock()

	return s.sink.Close()
}

// intervals returns the scheduled [start, start+duration) window of every
// active handle. Test hook.
func (s *Scheduler) intervals() [][2]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][2]time.Time, 0, len(s.active))
	for _, h := range s.active {
		out = append(out, [2]time.Time{h.startAt, h.startAt.Add(h.duration)})
	}
	return out
}
