package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quotesync/internal/platform/logging"
)

// Scheduler runs a task on a fixed interval until stopped. A tick that
// arrives while the previous run is still going is dropped by time.Ticker.
type Scheduler struct {
	interval   time.Duration
	runOnStart bool
	task       func(context.Context) error
	logger     *slog.Logger

	// runs is only touched by the loop goroutine.
	runs uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler. Panics on a non-positive interval.
func NewScheduler(interval time.Duration, runOnStart bool, task func(context.Context) error, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		panic("Scheduler: interval must be positive")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		interval:   interval,
		runOnStart: runOnStart,
		task:       task,
		logger:     logger.With(slog.String("component", "app.Scheduler")),
	}
}

// SyncTask adapts Synchronizer.Sync to a scheduler task.
func SyncTask(s *Synchronizer) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Sync(ctx)
		return err
	}
}

// Start launches the loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.InfoContext(ctx, "scheduler started",
		slog.Duration("interval", s.interval),
		slog.Bool("run_on_start", s.runOnStart),
	)
}

// Stop cancels the loop and waits for the in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.runOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	s.runs++
	ctx = logging.With(ctx, slog.String("trigger", "schedule"), slog.Uint64("run", s.runs))

	err := s.task(ctx)

	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		s.logger.DebugContext(ctx, "scheduled run skipped", slog.Any("error", err))
	case errors.Is(err, context.Canceled):
	default:
		s.logger.WarnContext(ctx, "scheduled run failed", slog.Any("error", err))
	}
}
