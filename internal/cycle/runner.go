package cycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Runner triggers the orchestrator on a fixed interval. Cycles are
// non-overlapping: the loop blocks for the cycle's duration, and any
// external double-trigger is dropped by the orchestrator's guard.
type Runner struct {
	orc      *Orchestrator
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a Runner ticking at interval.
func NewRunner(orc *Orchestrator, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{orc: orc, interval: interval, logger: logger}
}

// Start begins the polling loop. The first cycle runs immediately.
func (r *Runner) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("cycle runner started", "interval", r.interval)
}

// Stop cancels the loop and waits for any in-flight cycle to finish, or
// for ctx to expire. Partial cycles are valid; nothing is rolled back.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("cycle runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.trigger()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.trigger()
		}
	}
}

func (r *Runner) trigger() {
	if _, err := r.orc.RunCycle(r.ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
		// Already logged with cycle context; the next tick tries again.
		return
	}
}
