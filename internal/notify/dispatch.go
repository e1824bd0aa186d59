package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

// Dispatcher delivers through a Notifier and never fails outward: every error
// ends up in the returned DispatchResult. Attempts bounds delivery tries; the
// default of 1 is a single attempt with no retry.
type Dispatcher struct {
	Logger   *zap.Logger
	Notifier Notifier
	Attempts int
	Backoff  time.Duration
}

func NewDispatcher(logger *zap.Logger, n Notifier, attempts int, backoff time.Duration) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Dispatcher{Logger: logger, Notifier: n, Attempts: attempts, Backoff: backoff}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.Message) domain.DispatchResult {
	attempts := d.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var errs error
	n := 0
	for n < attempts {
		n++
		err := d.sendOnce(ctx, msg)
		if err == nil {
			d.Logger.Info("dispatch_sent",
				zap.String("subject", msg.Subject),
				zap.Int("recipients", len(msg.Recipients)),
				zap.Int("attempt", n),
			)
			return domain.DispatchResult{Delivered: true, Attempts: n}
		}
		errs = multierr.Append(errs, fmt.Errorf("attempt %d: %w", n, err))
		if n < attempts && !sleep(ctx, d.Backoff) {
			break
		}
	}

	d.Logger.Warn("dispatch_failed",
		zap.String("subject", msg.Subject),
		zap.Int("attempts", n),
		zap.Error(errs),
	)
	return domain.DispatchResult{Delivered: false, Attempts: n, Err: errs}
}

func (d *Dispatcher) sendOnce(ctx context.Context, msg domain.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()
	if d.Notifier == nil {
		return fmt.Errorf("no notifier configured")
	}
	return d.Notifier.Send(ctx, msg)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
