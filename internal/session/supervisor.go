package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default restart parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// SupervisorConfig configures a [Supervisor].
type SupervisorConfig struct {
	// Manager is the session manager to supervise.
	Manager *Manager

	// MaxRetries is the number of consecutive failed restart attempts before
	// the supervisor gives up. Defaults to 10 if zero. A successful restart
	// resets the count.
	MaxRetries int

	// Backoff is the initial delay before a restart attempt. Doubles on each
	// consecutive failure up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on the restart delay. Defaults to 30s if
	// zero.
	MaxBackoff time.Duration
}

// Supervisor keeps a voice session alive. When the supervised session ends
// unexpectedly (transport failure, capture death) it restarts the session
// with exponential backoff, until the context is cancelled, [Supervisor.Stop]
// is called, or the retry budget is exhausted.
type Supervisor struct {
	mgr        *Manager
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewSupervisor creates a [Supervisor] with the given configuration.
// Zero-value config fields are replaced with defaults.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Supervisor{
		mgr:        cfg.Manager,
		maxRetries: maxRetries,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		done:       make(chan struct{}),
	}
}

// Run starts the session and blocks, restarting it whenever it dies. It
// returns nil after [Supervisor.Stop], ctx.Err() on cancellation, or an error
// when the initial start fails or the retry budget is exhausted. The session
// is always stopped before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.mgr.Start(ctx); err != nil {
		return fmt.Errorf("supervisor: initial start: %w", err)
	}
	defer func() { _ = s.mgr.Stop() }()

	for {
		sessionDone := make(chan struct{})
		go func() {
			s.mgr.Wait()
			close(sessionDone)
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-sessionDone:
		}

		if err := s.restart(ctx); err != nil {
			return err
		}
	}
}

// restart attempts to bring the session back up with exponential backoff.
func (s *Supervisor) restart(ctx context.Context) error {
	backoff := s.backoff

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		slog.Info("restarting session",
			"attempt", attempt,
			"max_retries", s.maxRetries,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(backoff):
		}

		if err := s.mgr.Start(ctx); err != nil {
			slog.Warn("session restart failed", "err", err, "attempt", attempt)
			backoff = min(backoff*2, s.maxBackoff)
			continue
		}

		slog.Info("session restarted", "attempt", attempt)
		return nil
	}

	return fmt.Errorf("supervisor: giving up after %d restart attempts", s.maxRetries)
}

// Stop ends supervision and shuts the session down. Safe to call multiple
// times and from any goroutine.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}
