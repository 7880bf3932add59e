package script

import (
	"errors"
	"fmt"
)

// Cancel is a recoverable validation failure. An operation that fails
// with a Cancel is rolled back and reported as a structured non-fatal
// result; every other error is a fault and propagates after rollback.
type Cancel struct {
	msg string
}

// NewCancel creates a cancellation sentinel with a fixed message
func NewCancel(msg string) *Cancel {
	return &Cancel{msg: msg}
}

// Cancelf creates a cancellation with a formatted message
func Cancelf(format string, args ...any) *Cancel {
	return &Cancel{msg: fmt.Sprintf(format, args...)}
}

func (c *Cancel) Error() string {
	return c.msg
}

// IsCancel reports whether err is, or wraps, a cancellation
func IsCancel(err error) bool {
	var c *Cancel
	return errors.As(err, &c)
}

// ErrTargetNotFound is returned when a device/port reference does not
// resolve to exactly one inventory object
var ErrTargetNotFound = NewCancel("target not found")
