package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/billing"
	"github.com/ManuelReschke/MemberPay/internal/pkg/gateway"
	"github.com/ManuelReschke/MemberPay/internal/pkg/testutil"
	"github.com/ManuelReschke/MemberPay/internal/pkg/usercontext"
)

type fakeCreator struct {
	calls int
	order *models.PaymentOrder
	desc  *gateway.Descriptor
	err   error
}

func (f *fakeCreator) CreateOrder(_ context.Context, _ uint, _ string, _ int, _ string) (*models.PaymentOrder, *gateway.Descriptor, error) {
	f.calls++
	return f.order, f.desc, f.err
}

type fakeCallbacks struct {
	provider string
	raw      []byte
}

func (f *fakeCallbacks) HandleCallback(_ context.Context, provider string, raw []byte) billing.Ack {
	f.provider = provider
	f.raw = raw
	return billing.SuccessAck(provider)
}

type controllerFixture struct {
	app       *fiber.App
	repos     *repository.Repositories
	creator   *fakeCreator
	callbacks *fakeCallbacks
	user      *models.User
}

// newControllerFixture authenticates requests as the user id in X-Test-User.
func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	db := testutil.NewDB(t)
	repos := repository.NewRepositories(db)
	f := &controllerFixture{
		repos:     repos,
		creator:   &fakeCreator{},
		callbacks: &fakeCallbacks{},
		user:      testutil.CreateUser(t, db, "buyer"),
	}
	pc := NewPaymentController(f.creator, repos.Order, repos.User, f.callbacks)

	auth := func(c *fiber.Ctx) error {
		id := c.Get("X-Test-User")
		if id == "" {
			return c.Next()
		}
		uid, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		usercontext.SetUserContext(c, usercontext.UserContext{UserID: uint(uid), IsLoggedIn: true})
		return c.Next()
	}

	app := fiber.New()
	app.Post("/payment/orders", auth, pc.HandleCreateOrder)
	app.Get("/payment/orders/:orderId", auth, pc.HandleGetOrder)
	app.Get("/payment/account", auth, pc.HandleGetAccount)
	app.Post("/payment/callback/wechat", pc.HandleWeChatCallback)
	app.Post("/payment/callback/alipay", pc.HandleAlipayCallback)
	f.app = app
	return f
}

func (f *controllerFixture) do(t *testing.T, method, path, body string, userID uint) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHandleCreateOrder(t *testing.T) {
	f := newControllerFixture(t)
	expires := time.Date(2026, 6, 1, 10, 30, 0, 0, time.UTC)
	f.creator.order = &models.PaymentOrder{OrderID: "PO1"}
	f.creator.desc = &gateway.Descriptor{
		OrderID:    "PO1",
		Amount:     39900,
		Currency:   "CNY",
		PaymentURL: "weixin://wxpay/bizpayurl?pr=abc",
		QRCode:     "weixin://wxpay/bizpayurl?pr=abc",
		ExpiresAt:  expires,
	}

	resp, body := f.do(t, "POST", "/payment/orders", `{"plan":"premium","duration":3,"payment_method":"wechat"}`, f.user.ID)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "PO1", body["order_id"])
	assert.Equal(t, float64(39900), body["amount"])
	assert.Equal(t, "399.00", body["amount_display"])
	assert.Equal(t, "CNY", body["currency"])
	assert.Equal(t, "2026-06-01T10:30:00Z", body["expires_at"])
}

func TestHandleCreateOrderRejectsInvalidBody(t *testing.T) {
	f := newControllerFixture(t)

	resp, body := f.do(t, "POST", "/payment/orders", `{"plan":"gold","duration":3,"payment_method":"wechat"}`, f.user.ID)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "plan", body["field"])

	resp, body = f.do(t, "POST", "/payment/orders", `{"plan":"basic","duration":1,"payment_method":"paypal"}`, f.user.ID)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "payment_method", body["field"])

	resp, _ = f.do(t, "POST", "/payment/orders", `not json`, f.user.ID)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, 0, f.creator.calls)
}

func TestHandleCreateOrderMapsServiceErrors(t *testing.T) {
	f := newControllerFixture(t)

	f.creator.err = &gateway.ValidationError{Field: "duration", Message: "no price for basic/5 months"}
	resp, body := f.do(t, "POST", "/payment/orders", `{"plan":"basic","duration":5,"payment_method":"alipay"}`, f.user.ID)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "duration", body["field"])

	f.creator.order = &models.PaymentOrder{OrderID: "PO-down", Status: models.OrderStatusFailed}
	f.creator.err = &gateway.ProviderUnavailableError{Provider: "alipay", OrderID: "PO-down", Err: errors.New("timeout")}
	resp, body = f.do(t, "POST", "/payment/orders", `{"plan":"basic","duration":1,"payment_method":"alipay"}`, f.user.ID)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "PO-down", body["order_id"])
	assert.Equal(t, "failed", body["status"])

	f.creator.order = nil
	f.creator.err = &gateway.ProviderUnavailableError{Provider: "wechat", OrderID: "PO-down-2", Err: errors.New("reset")}
	resp, body = f.do(t, "POST", "/payment/orders", `{"plan":"basic","duration":1,"payment_method":"wechat"}`, f.user.ID)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "PO-down-2", body["order_id"])

	f.creator.order = nil
	f.creator.err = errors.New("db down")
	resp, _ = f.do(t, "POST", "/payment/orders", `{"plan":"basic","duration":1,"payment_method":"alipay"}`, f.user.ID)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestHandleCreateOrderRequiresAuth(t *testing.T) {
	f := newControllerFixture(t)
	resp, _ := f.do(t, "POST", "/payment/orders", `{"plan":"basic","duration":1,"payment_method":"alipay"}`, 0)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleGetOrderIsOwnerOnly(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	created := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.repos.Order.Create(ctx, &models.PaymentOrder{
		OrderID:            "PO-own",
		UserID:             f.user.ID,
		Type:               models.OrderTypeMembership,
		MembershipPlan:     models.MembershipBasic,
		MembershipDuration: 1,
		Amount:             2900,
		Currency:           "CNY",
		PaymentMethod:      models.PaymentMethodAlipay,
		Status:             models.OrderStatusPending,
		CreatedAt:          created,
		ExpiresAt:          created.Add(models.OrderLifetime),
	}))

	resp, body := f.do(t, "GET", "/payment/orders/PO-own", "", f.user.ID)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "29.00", body["amount_display"])
	assert.Nil(t, body["completed_at"])

	resp, _ = f.do(t, "GET", "/payment/orders/PO-own", "", f.user.ID+100)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, "GET", "/payment/orders/PO-missing", "", f.user.ID)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleGetAccount(t *testing.T) {
	f := newControllerFixture(t)
	resp, body := f.do(t, "GET", "/payment/account", "", f.user.ID)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	q, ok := body["quota"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(20), q["total"])
	assert.Equal(t, float64(20), q["remaining"])
	assert.Equal(t, float64(f.user.ID), body["user_id"])
	assert.NotContains(t, body, "email")
	assert.NotContains(t, body, "is_admin")
}

func TestCallbackHandlersAnswerInProviderShape(t *testing.T) {
	f := newControllerFixture(t)

	req := httptest.NewRequest("POST", "/payment/callback/wechat", strings.NewReader("<xml><out_trade_no>PO1</out_trade_no></xml>"))
	req.Header.Set("Content-Type", "text/xml")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "SUCCESS")
	assert.Equal(t, models.PaymentProviderWeChat, f.callbacks.provider)
	assert.Equal(t, "<xml><out_trade_no>PO1</out_trade_no></xml>", string(f.callbacks.raw))

	req = httptest.NewRequest("POST", "/payment/callback/alipay", strings.NewReader("notify_id=1&out_trade_no=PO1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "success", string(raw))
	assert.Equal(t, models.PaymentProviderAlipay, f.callbacks.provider)
}
