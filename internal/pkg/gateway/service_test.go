package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/pricing"
	"github.com/ManuelReschke/MemberPay/internal/pkg/testutil"
)

type fakeProvider struct {
	method string
	result *ProviderResult
	err    error
	delay  time.Duration
	calls  int
	last   PaymentRequest
}

func (f *fakeProvider) Name() string   { return f.method }
func (f *fakeProvider) Method() string { return f.method }

func (f *fakeProvider) CreatePayment(ctx context.Context, req PaymentRequest) (*ProviderResult, error) {
	f.calls++
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

var serviceNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, provider *fakeProvider, opts ...OrderServiceOption) (*OrderService, repository.OrderRepository) {
	t.Helper()
	orders := repository.NewOrderRepository(testutil.NewDB(t))
	opts = append([]OrderServiceOption{WithNow(func() time.Time { return serviceNow })}, opts...)
	return NewOrderService(orders, pricing.Default(), []Provider{provider}, opts...), orders
}

func TestCreateOrderHappyPath(t *testing.T) {
	provider := &fakeProvider{method: models.PaymentMethodWeChat, result: &ProviderResult{
		ProviderOrderID: "prepay-1", PaymentURL: "weixin://pay", QRCode: "weixin://pay",
	}}
	svc, orders := newService(t, provider)

	order, desc, err := svc.CreateOrder(context.Background(), 7, "Premium", 3, "wechat")
	require.NoError(t, err)
	assert.Equal(t, int64(39900), desc.Amount)
	assert.Equal(t, "CNY", desc.Currency)
	assert.Equal(t, "weixin://pay", desc.QRCode)
	assert.Equal(t, serviceNow.Add(30*time.Minute), desc.ExpiresAt)
	assert.Equal(t, int64(39900), provider.last.Amount)

	stored, err := orders.GetByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Equal(t, "prepay-1", stored.ProviderOrderID)
	assert.Equal(t, "premium", stored.MembershipPlan)
	assert.Equal(t, uint(7), stored.UserID)
}

func TestCreateOrderValidationHappensBeforeIO(t *testing.T) {
	provider := &fakeProvider{method: models.PaymentMethodWeChat}
	svc, _ := newService(t, provider)

	cases := []struct {
		plan   string
		months int
		method string
		field  string
	}{
		{"premium", 3, "paypal", "payment_method"},
		{"premium", 3, "credit_card", "payment_method"},
		{"premium", 3, "alipay", "payment_method"},
		{"gold", 3, "wechat", "plan"},
		{"free", 1, "wechat", "plan"},
		{"premium", 0, "wechat", "duration"},
		{"premium", 2, "wechat", "duration"},
	}
	for _, tc := range cases {
		_, _, err := svc.CreateOrder(context.Background(), 1, tc.plan, tc.months, tc.method)
		var ve *ValidationError
		require.Truef(t, errors.As(err, &ve), "%+v: %v", tc, err)
		assert.Equal(t, tc.field, ve.Field)
	}
	assert.Zero(t, provider.calls)

	_, _, err := svc.CreateOrder(context.Background(), 1, "premium", 2, "wechat")
	var upe *pricing.UnknownPlanError
	assert.True(t, errors.As(err, &upe))
}

func TestCreateOrderProviderFailureMarksOrderFailed(t *testing.T) {
	provider := &fakeProvider{method: models.PaymentMethodAlipay, err: errors.New("connection reset")}
	var generated string
	svc, orders := newService(t, provider, WithOrderIDGenerator(func(now time.Time) string {
		generated = NewOrderID(now)
		return generated
	}))

	failed, desc, err := svc.CreateOrder(context.Background(), 3, "basic", 1, "alipay")
	var pue *ProviderUnavailableError
	require.True(t, errors.As(err, &pue))
	assert.Equal(t, generated, pue.OrderID)
	assert.Nil(t, desc)
	require.NotNil(t, failed)
	assert.Equal(t, generated, failed.OrderID)
	assert.Equal(t, models.OrderStatusFailed, failed.Status)

	stored, err := orders.GetByOrderID(context.Background(), generated)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
	assert.Equal(t, "provider_unavailable", stored.FailureReason)
}

func TestCreateOrderProviderTimeout(t *testing.T) {
	provider := &fakeProvider{method: models.PaymentMethodWeChat, delay: time.Second}
	svc, _ := newService(t, provider, WithProviderTimeout(20*time.Millisecond))

	_, _, err := svc.CreateOrder(context.Background(), 3, "basic", 1, "wechat")
	var pue *ProviderUnavailableError
	require.True(t, errors.As(err, &pue))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCreateOrderRetriesOrderIDCollision(t *testing.T) {
	provider := &fakeProvider{method: models.PaymentMethodWeChat, result: &ProviderResult{QRCode: "q"}}
	ids := []string{"PO-dup", "PO-dup", "PO-unique"}
	i := 0
	svc, _ := newService(t, provider, WithOrderIDGenerator(func(time.Time) string {
		id := ids[i]
		i++
		return id
	}))

	first, _, err := svc.CreateOrder(context.Background(), 1, "basic", 1, "wechat")
	require.NoError(t, err)
	assert.Equal(t, "PO-dup", first.OrderID)

	second, _, err := svc.CreateOrder(context.Background(), 1, "basic", 1, "wechat")
	require.NoError(t, err)
	assert.Equal(t, "PO-unique", second.OrderID)
}

type detailsFailingOrders struct {
	repository.OrderRepository
}

func (detailsFailingOrders) SetProviderDetails(context.Context, string, string, string, string) error {
	return errors.New("lock wait timeout")
}

func TestCreateOrderReturnsDescriptorWhenDetailsCannotBeStored(t *testing.T) {
	provider := &fakeProvider{method: models.PaymentMethodWeChat, result: &ProviderResult{
		ProviderOrderID: "prepay-2", PaymentURL: "weixin://pay/2", QRCode: "weixin://pay/2",
	}}
	orders := detailsFailingOrders{repository.NewOrderRepository(testutil.NewDB(t))}
	svc := NewOrderService(orders, pricing.Default(), []Provider{provider}, WithNow(func() time.Time { return serviceNow }))

	order, desc, err := svc.CreateOrder(context.Background(), 5, "basic", 1, "wechat")
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "weixin://pay/2", desc.QRCode)

	stored, err := orders.GetByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Empty(t, stored.ProviderOrderID)
}
