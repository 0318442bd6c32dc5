package billing

import (
	"context"

	"github.com/ManuelReschke/MemberPay/app/models"
)

// Outcome is the provider-neutral meaning of a notification.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePending Outcome = "pending"
	OutcomeRefund  Outcome = "refund"
)

// Notification is the normalized shape of a provider callback.
type Notification struct {
	Provider              string
	EventID               string
	OrderID               string
	ProviderTransactionID string
	Amount                int64
	Outcome               Outcome
	ProviderStatus        string
	Params                map[string]string
	Raw                   string
	PayloadHash           string
}

// Activator applies a completed order to the user's membership.
type Activator interface {
	Activate(ctx context.Context, order *models.PaymentOrder) (*models.User, error)
}

// Archiver keeps a copy of verified callback bodies.
type Archiver interface {
	Archive(ctx context.Context, provider, orderID string, payload []byte) error
}
