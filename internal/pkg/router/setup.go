package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberPay/app/controllers"
	"github.com/ManuelReschke/MemberPay/app/repository"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired services the routes delegate to.
type Dependencies struct {
	DB       *gorm.DB
	Cache    *redis.Client // optional
	Users    repository.UserRepository
	Payments *controllers.PaymentController

	// LimiterStorage backs the order rate limit; nil keeps counters in memory.
	LimiterStorage  fiber.Storage
	OrderRateLimit  int
	OrderRateWindow time.Duration
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Ops routes first so health checks never pass through API auth.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
