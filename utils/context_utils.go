package utils

import (
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// CheckContextDone reports whether ctx has been cancelled or has expired.
func CheckContextDone(ctx context.Context) bool {
	return ctx.Err() != nil
}

// ContextDoneError returns nil while ctx is live. Once ctx is done, its error is returned annotated with the step
// that was about to start. errors.Is still matches context.Canceled and context.DeadlineExceeded.
func ContextDoneError(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "cancelled before %s", step)
	}
	return nil
}
