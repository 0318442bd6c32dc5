package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/entitlements"
	"github.com/ManuelReschke/MemberPay/internal/pkg/metrics"
	"github.com/ManuelReschke/MemberPay/internal/pkg/pricing"
)

const orderIDAttempts = 3

// OrderService creates pending orders and opens the matching provider payment.
type OrderService struct {
	orders    repository.OrderRepository
	prices    *pricing.Table
	providers map[string]Provider
	timeout   time.Duration
	subject   string
	now       func() time.Time
	newID     func(time.Time) string
}

// OrderServiceOption customizes an OrderService.
type OrderServiceOption func(*OrderService)

// WithNow overrides time.Now.
func WithNow(now func() time.Time) OrderServiceOption {
	return func(s *OrderService) { s.now = now }
}

// WithOrderIDGenerator overrides NewOrderID.
func WithOrderIDGenerator(gen func(time.Time) string) OrderServiceOption {
	return func(s *OrderService) { s.newID = gen }
}

// WithProviderTimeout bounds every provider call.
func WithProviderTimeout(d time.Duration) OrderServiceOption {
	return func(s *OrderService) { s.timeout = d }
}

// WithSubject sets the product title shown by the provider.
func WithSubject(subject string) OrderServiceOption {
	return func(s *OrderService) { s.subject = subject }
}

// NewOrderService wires providers by the payment method they serve.
func NewOrderService(orders repository.OrderRepository, prices *pricing.Table, providers []Provider, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		orders:    orders,
		prices:    prices,
		providers: make(map[string]Provider, len(providers)),
		timeout:   10 * time.Second,
		subject:   "Membership",
		now:       time.Now,
		newID:     NewOrderID,
	}
	for _, p := range providers {
		s.providers[p.Method()] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder validates the request, persists a pending order and asks the
// provider for a payment handle. A provider failure marks the order failed
// and returns it alongside a *ProviderUnavailableError.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, plan string, months int, method string) (*models.PaymentOrder, *Descriptor, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	plan = strings.ToLower(strings.TrimSpace(plan))

	if userID == 0 {
		return nil, nil, &ValidationError{Field: "user_id", Message: "is required"}
	}
	if !models.IsValidPaymentMethod(method) {
		return nil, nil, &ValidationError{Field: "payment_method", Message: fmt.Sprintf("unknown method %q", method)}
	}
	if !entitlements.IsPaid(plan) {
		return nil, nil, &ValidationError{Field: "plan", Message: fmt.Sprintf("unknown plan %q", plan)}
	}
	if months <= 0 {
		return nil, nil, &ValidationError{Field: "duration", Message: "must be positive"}
	}
	provider, ok := s.providers[method]
	if !ok {
		return nil, nil, &ValidationError{Field: "payment_method", Message: fmt.Sprintf("%s is not available", method)}
	}
	amount, err := s.prices.Price(plan, months)
	if err != nil {
		return nil, nil, &ValidationError{Field: "duration", Message: err.Error(), Err: err}
	}

	order, err := s.persistPending(ctx, userID, plan, months, amount, method)
	if err != nil {
		metrics.OrdersCreatedTotal.WithLabelValues(method, "error").Inc()
		return nil, nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := provider.CreatePayment(callCtx, PaymentRequest{
		OrderID:   order.OrderID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Subject:   fmt.Sprintf("%s %s x%d", s.subject, plan, months),
		ExpiresAt: order.ExpiresAt,
	})
	cancel()
	if err != nil {
		s.markFailed(ctx, order, err)
		metrics.OrdersCreatedTotal.WithLabelValues(method, "provider_unavailable").Inc()
		return order, nil, &ProviderUnavailableError{Provider: provider.Name(), OrderID: order.OrderID, Err: err}
	}

	// The provider payment exists and settles by order id, so the caller
	// still gets its handle when the details cannot be stored.
	if err := s.orders.SetProviderDetails(ctx, order.OrderID, result.ProviderOrderID, result.PaymentURL, result.QRCode); err != nil {
		log.Warnf("[Gateway] store provider details for order %s failed: %v", order.OrderID, err)
	}
	order.ProviderOrderID = result.ProviderOrderID
	order.PaymentURL = result.PaymentURL
	order.QRCode = result.QRCode

	metrics.OrdersCreatedTotal.WithLabelValues(method, "created").Inc()
	log.Infof("[Gateway] order %s created for user %d: %s x%d via %s (%d %s)",
		order.OrderID, userID, plan, months, method, amount, order.Currency)

	return order, &Descriptor{
		OrderID:    order.OrderID,
		Amount:     order.Amount,
		Currency:   order.Currency,
		PaymentURL: order.PaymentURL,
		QRCode:     order.QRCode,
		ExpiresAt:  order.ExpiresAt,
	}, nil
}

func (s *OrderService) persistPending(ctx context.Context, userID uint, plan string, months int, amount int64, method string) (*models.PaymentOrder, error) {
	now := s.now()
	var err error
	for attempt := 1; attempt <= orderIDAttempts; attempt++ {
		order := &models.PaymentOrder{
			OrderID:            s.newID(now),
			UserID:             userID,
			Type:               models.OrderTypeMembership,
			MembershipPlan:     plan,
			MembershipDuration: months,
			Amount:             amount,
			Currency:           s.prices.Currency(),
			PaymentMethod:      method,
			Status:             models.OrderStatusPending,
			CreatedAt:          now,
			ExpiresAt:          now.Add(models.OrderLifetime),
		}
		err = s.orders.Create(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("create order: %w", err)
		}
		log.Warnf("[Gateway] order id %s collided, retrying (%d/%d)", order.OrderID, attempt, orderIDAttempts)
	}
	return nil, fmt.Errorf("create order: no unique order id after %d attempts: %w", orderIDAttempts, err)
}

func (s *OrderService) markFailed(ctx context.Context, order *models.PaymentOrder, cause error) {
	ctx = context.WithoutCancel(ctx)
	done, err := s.orders.MarkFailed(ctx, order.OrderID, "provider_unavailable")
	if err != nil {
		log.Errorf("[Gateway] could not mark order %s failed: %v", order.OrderID, err)
		return
	}
	if done {
		order.Status = models.OrderStatusFailed
		order.FailureReason = "provider_unavailable"
	}
	log.Warnf("[Gateway] provider error for order %s: %v", order.OrderID, cause)
}
