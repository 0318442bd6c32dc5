package billing

import (
	"errors"
	"fmt"
)

// ErrDuplicateCallback means the order was already settled; the callback is
// acknowledged without any change.
var ErrDuplicateCallback = errors.New("billing: duplicate callback")

// ErrUnsupportedProvider is returned for a provider without a parser or verifier.
var ErrUnsupportedProvider = errors.New("billing: unsupported provider")

// UnknownOrderError is returned when a verified callback names no known order.
type UnknownOrderError struct {
	OrderID string
}

func (e *UnknownOrderError) Error() string {
	return fmt.Sprintf("billing: unknown order %q", e.OrderID)
}

// AmountMismatchError is returned when the paid amount differs from the order.
type AmountMismatchError struct {
	OrderID  string
	Expected int64
	Paid     int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("billing: order %s expected %d but provider reported %d", e.OrderID, e.Expected, e.Paid)
}

// MalformedNotificationError wraps parse and extraction failures.
type MalformedNotificationError struct {
	Provider string
	Err      error
}

func (e *MalformedNotificationError) Error() string {
	return fmt.Sprintf("billing: malformed %s notification: %v", e.Provider, e.Err)
}

func (e *MalformedNotificationError) Unwrap() error { return e.Err }

// acknowledged reports whether err still allows a success ack.
func acknowledged(err error) bool {
	if err == nil || errors.Is(err, ErrDuplicateCallback) {
		return true
	}
	var unknown *UnknownOrderError
	var mismatch *AmountMismatchError
	return errors.As(err, &unknown) || errors.As(err, &mismatch)
}
