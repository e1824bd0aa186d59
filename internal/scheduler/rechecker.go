package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

// Runner checks every registered site, at most limit at a time.
type Runner interface {
	RunAll(ctx context.Context, limit int) []domain.CheckResult
}

type Rechecker struct {
	Logger      *zap.Logger
	Runner      Runner
	Interval    time.Duration
	Concurrency int
}

func NewRechecker(
	logger *zap.Logger,
	runner Runner,
	interval time.Duration,
	concurrency int,
) *Rechecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	return &Rechecker{
		Logger:      logger,
		Runner:      runner,
		Interval:    interval,
		Concurrency: concurrency,
	}
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled.
func (r *Rechecker) Run(ctx context.Context) {
	if r.Interval == 0 {
		// disabled
		r.Logger.Info("rechecker_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	// immediate pass
	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("rechecker_stopped")
			return
		case <-t.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce finishes a started pass even if ctx is cancelled mid-way; Run
// notices the cancellation before the next tick.
func (r *Rechecker) runOnce(ctx context.Context) {
	results := r.Runner.RunAll(ctx, r.Concurrency)
	for _, res := range results {
		r.Logger.Info("rechecker_checked",
			zap.String("run_id", res.RunID),
			zap.String("site", string(res.Site.ID)),
			zap.Bool("found", res.Verdict.Found),
			zap.Bool("delivered", res.Dispatch.Delivered),
			zap.String("status", res.StatusLine),
		)
	}
}
