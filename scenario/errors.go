package scenario

import (
	"github.com/pkg/errors"
)

// ErrAssertionFailed is wrapped by errors returned from a scenario's Check when its success condition does not hold.
var ErrAssertionFailed = errors.New("assertion failed")

// Assertf returns nil if condition holds, or an error wrapping ErrAssertionFailed with the formatted message.
func Assertf(condition bool, format string, args ...any) error {
	if condition {
		return nil
	}
	return errors.Wrapf(ErrAssertionFailed, format, args...)
}
