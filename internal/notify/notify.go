package notify

import (
	"context"

	"go.uber.org/multierr"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

// Notifier delivers one message. Implementations report failure through the
// returned error; Dispatcher is what turns that into a DispatchResult.
type Notifier interface {
	Send(ctx context.Context, msg domain.Message) error
}

// Multi sends to every notifier and combines their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg domain.Message) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, msg))
	}
	return errs
}
