package diskcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"slcache/internal/logging"
)

// Purger runs one eviction pass.
type Purger interface {
	Purge(ctx context.Context) (PassResult, error)
}

// Scheduler runs eviction passes on a fixed interval until stopped. Manual
// passes requested through RunNow share the scheduler's observers; concurrent
// requests collapse into a single pass.
type Scheduler struct {
	purger    Purger
	interval  time.Duration
	logger    *slog.Logger
	observers []PassObserver

	flight singleflight.Group

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    PassResult
}

// NewScheduler builds a scheduler for purger.
func NewScheduler(purger Purger, interval time.Duration, logger *slog.Logger, observers ...PassObserver) *Scheduler {
	return &Scheduler{
		purger:    purger,
		interval:  interval,
		logger:    logging.NewComponentLogger(logger, "purge-scheduler"),
		observers: observers,
	}
}

// Start launches the background loop. The loop exits when ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("purge interval must be positive")
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("purge scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(runCtx)

	s.logger.Info("purge scheduler started",
		logging.Duration("interval", s.interval),
		logging.String(logging.FieldEventType, "purge_scheduler_started"),
	)
	return nil
}

// Stop terminates the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("purge scheduler stopped", logging.String(logging.FieldEventType, "purge_scheduler_stopped"))
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastPass returns the most recent pass result, scheduled or manual.
func (s *Scheduler) LastPass() PassResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunNow runs a pass immediately and returns its result.
func (s *Scheduler) RunNow(ctx context.Context) (PassResult, error) {
	value, err, _ := s.flight.Do("purge", func() (any, error) {
		return s.runPass(context.WithoutCancel(ctx))
	})
	result, _ := value.(PassResult)
	return result, err
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := s.RunNow(ctx); err != nil {
			logging.WarnWithContext(s.logger, "scheduled purge failed; retrying next tick", "cache_purge_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "cache may exceed its budget until a pass succeeds"),
				logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context) (PassResult, error) {
	result, err := s.purger.Purge(ctx)
	if err != nil {
		return result, err
	}
	if result.PassID == "" {
		return result, nil
	}
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
	passCtx := logging.WithPassID(ctx, result.PassID)
	for _, observer := range s.observers {
		if observer != nil {
			observer.ObservePass(passCtx, result)
		}
	}
	return result, nil
}
