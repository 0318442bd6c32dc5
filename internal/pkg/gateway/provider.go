package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// PaymentRequest is what a provider needs to open a payment.
type PaymentRequest struct {
	OrderID   string
	Amount    int64
	Currency  string
	Subject   string
	ExpiresAt time.Time
}

// ProviderResult is the provider's handle on the opened payment.
type ProviderResult struct {
	ProviderOrderID string
	PaymentURL      string
	QRCode          string
}

// Provider opens payments with one external payment provider.
type Provider interface {
	Name() string
	Method() string
	CreatePayment(ctx context.Context, req PaymentRequest) (*ProviderResult, error)
}

// Descriptor is returned to the caller of CreateOrder so the UI can send
// the user to the provider.
type Descriptor struct {
	OrderID    string    `json:"order_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	PaymentURL string    `json:"payment_url"`
	QRCode     string    `json:"qr_code"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// newHTTPClient returns a resty client that retries transport errors and
// 5xx answers.
func newHTTPClient(baseURL string, timeout time.Duration, retries int) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
}
