package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/MemberPay/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	payment := app.Group("/payment")

	// Providers call these without credentials; the signature is the auth.
	payment.Post("/callback/wechat", h.deps.Payments.HandleWeChatCallback)
	payment.Post("/callback/alipay", h.deps.Payments.HandleAlipayCallback)

	auth := middleware.APIKeyAuthMiddleware(h.deps.Users)
	payment.Post("/orders", h.orderLimiter(), auth, h.deps.Payments.HandleCreateOrder)
	payment.Get("/orders/:orderId", auth, h.deps.Payments.HandleGetOrder)
	payment.Get("/account", auth, h.deps.Payments.HandleGetAccount)
}

func (h ApiRouter) orderLimiter() fiber.Handler {
	limit := h.deps.OrderRateLimit
	if limit <= 0 {
		limit = 10
	}
	window := h.deps.OrderRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		Storage:    h.deps.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if key := middleware.APIKeyFromRequest(c); key != "" {
				return "order:key:" + key
			}
			return "order:ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many order requests, slow down"})
		},
	})
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

// NewLimiterStorage stores limiter counters in Redis database 1 of the
// cache server, so limits hold across instances.
func NewLimiterStorage(client *redis.Client) fiber.Storage {
	opts := client.Options()
	host, port := splitAddr(opts.Addr)
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: 1,
		Reset:    false,
	})
}
