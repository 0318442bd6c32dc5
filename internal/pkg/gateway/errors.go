package gateway

import "fmt"

// ValidationError rejects a create-order request before any I/O.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("gateway: invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ProviderUnavailableError means the provider could not create a payment.
// The local order has been marked failed.
type ProviderUnavailableError struct {
	Provider string
	OrderID  string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("gateway: %s unavailable for order %s: %v", e.Provider, e.OrderID, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }
