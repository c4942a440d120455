package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/repo"
)

// Observer is told about every stored run.
type Observer interface {
	Observe(ctx context.Context, run domain.Run) error
}

// Runner repeats a Checker on an interval and stores each run.
type Runner struct {
	Logger    *zap.Logger
	Checker   Checker
	Runs      repo.RunStore
	Interval  time.Duration
	Observers []Observer

	trigger chan struct{}
	mu      sync.Mutex // one run at a time
}

func NewRunner(logger *zap.Logger, checker Checker, runs repo.RunStore, interval time.Duration, observers ...Observer) *Runner {
	if interval < 0 {
		interval = 0
	}
	return &Runner{
		Logger:    logger,
		Checker:   checker,
		Runs:      runs,
		Interval:  interval,
		Observers: observers,
		trigger:   make(chan struct{}, 1),
	}
}

// Run does an immediate pass, then one per tick or Trigger call.
// Stops when ctx is cancelled. An Interval of 0 disables the ticker but
// still serves triggers.
func (r *Runner) Run(ctx context.Context) {
	var tick <-chan time.Time
	if r.Interval > 0 {
		t := time.NewTicker(r.Interval)
		defer t.Stop()
		tick = t.C
	} else {
		r.Logger.Info("runner_interval_disabled")
	}

	// immediate pass
	_, _ = r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner_stopped")
			return
		case <-tick:
			_, _ = r.RunOnce(ctx)
		case <-r.trigger:
			_, _ = r.RunOnce(ctx)
		}
	}
}

// Trigger asks Run for an extra pass. It returns false if one is already queued.
func (r *Runner) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce performs and stores a single run.
func (r *Runner) RunOnce(ctx context.Context) (domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.Checker.Check(ctx)
	if ctx.Err() != nil {
		return run, ctx.Err()
	}
	if err := r.Runs.Save(ctx, &run); err != nil {
		r.Logger.Warn("runner_save_error", zap.Error(err))
		return run, err
	}
	r.Logger.Debug("runner_saved", zap.Int64("run_id", run.ID), zap.Int("endpoints", len(run.Results)))

	for _, o := range r.Observers {
		if err := o.Observe(ctx, run); err != nil {
			r.Logger.Warn("runner_observer_error", zap.Int64("run_id", run.ID), zap.Error(err))
		}
	}
	return run, nil
}
