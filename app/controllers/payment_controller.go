package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/billing"
	"github.com/ManuelReschke/MemberPay/internal/pkg/gateway"
	"github.com/ManuelReschke/MemberPay/internal/pkg/pricing"
	"github.com/ManuelReschke/MemberPay/internal/pkg/usercontext"
)

// OrderCreator creates pending orders and asks the provider for a payment link.
type OrderCreator interface {
	CreateOrder(ctx context.Context, userID uint, plan string, months int, method string) (*models.PaymentOrder, *gateway.Descriptor, error)
}

// CallbackHandler turns a raw provider notification into the provider's ack.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, provider string, raw []byte) billing.Ack
}

// PaymentController serves the order and callback endpoints.
type PaymentController struct {
	orders    OrderCreator
	orderRepo repository.OrderRepository
	users     repository.UserRepository
	callbacks CallbackHandler
	validate  *validator.Validate
}

func NewPaymentController(orders OrderCreator, orderRepo repository.OrderRepository, users repository.UserRepository, callbacks CallbackHandler) *PaymentController {
	return &PaymentController{
		orders:    orders,
		orderRepo: orderRepo,
		users:     users,
		callbacks: callbacks,
		validate:  validator.New(),
	}
}

type createOrderRequest struct {
	Plan          string `json:"plan" validate:"required,oneof=basic premium super"`
	Duration      int    `json:"duration" validate:"required,min=1,max=36"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=wechat alipay credit_card"`
}

// HandleCreateOrder creates a membership order for the authenticated user.
func (pc *PaymentController) HandleCreateOrder(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid request body"})
	}
	if err := pc.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation_error",
				"field":   jsonFieldName(verrs[0].Field()),
				"message": "Invalid value for " + jsonFieldName(verrs[0].Field()),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": err.Error()})
	}

	order, desc, err := pc.orders.CreateOrder(c.UserContext(), userCtx.UserID, req.Plan, req.Duration, req.PaymentMethod)
	if err != nil {
		var verr *gateway.ValidationError
		var perr *gateway.ProviderUnavailableError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "field": verr.Field, "message": verr.Message})
		case errors.As(err, &perr):
			body := fiber.Map{"error": "provider_unavailable", "message": "Payment provider is unavailable, please retry later"}
			switch {
			case order != nil:
				body["order_id"] = order.OrderID
				body["status"] = order.Status
			case perr.OrderID != "":
				body["order_id"] = perr.OrderID
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(body)
		default:
			log.Errorf("[Payment] create order for user %d failed: %v", userCtx.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create order"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":       desc.OrderID,
		"amount":         desc.Amount,
		"amount_display": pricing.FormatMajor(desc.Amount),
		"currency":       desc.Currency,
		"payment_url":    desc.PaymentURL,
		"qr_code":        desc.QRCode,
		"expires_at":     desc.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleGetOrder returns the status projection of an order owned by the caller.
func (pc *PaymentController) HandleGetOrder(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	order, err := pc.orderRepo.GetByOrderID(c.UserContext(), c.Params("orderId"))
	if err != nil {
		if repository.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Order not found"})
		}
		log.Errorf("[Payment] load order %s failed: %v", c.Params("orderId"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load order"})
	}
	// Other users' orders look exactly like missing ones.
	if order.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Order not found"})
	}

	return c.JSON(fiber.Map{
		"order_id":                order.OrderID,
		"status":                  order.Status,
		"type":                    order.Type,
		"membership_plan":         order.MembershipPlan,
		"membership_duration":     order.MembershipDuration,
		"amount":                  order.Amount,
		"amount_display":          pricing.FormatMajor(order.Amount),
		"currency":                order.Currency,
		"payment_method":          order.PaymentMethod,
		"provider_order_id":       order.ProviderOrderID,
		"provider_transaction_id": order.ProviderTransactionID,
		"failure_reason":          order.FailureReason,
		"created_at":              order.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at":              order.ExpiresAt.UTC().Format(time.RFC3339),
		"completed_at":            formatTimePtr(order.CompletedAt),
	})
}

// HandleWeChatCallback receives WeChat Pay XML notifications.
func (pc *PaymentController) HandleWeChatCallback(c *fiber.Ctx) error {
	return pc.handleCallback(c, models.PaymentProviderWeChat)
}

// HandleAlipayCallback receives Alipay form notifications.
func (pc *PaymentController) HandleAlipayCallback(c *fiber.Ctx) error {
	return pc.handleCallback(c, models.PaymentProviderAlipay)
}

// Providers only understand their own ack shapes, so the status is always 200.
func (pc *PaymentController) handleCallback(c *fiber.Ctx, provider string) error {
	raw := append([]byte(nil), c.Body()...)
	ack := pc.callbacks.HandleCallback(c.UserContext(), provider, raw)
	c.Set(fiber.HeaderContentType, ack.ContentType)
	return c.Status(fiber.StatusOK).SendString(ack.Body)
}

func jsonFieldName(field string) string {
	switch field {
	case "Plan":
		return "plan"
	case "Duration":
		return "duration"
	case "PaymentMethod":
		return "payment_method"
	}
	return field
}
