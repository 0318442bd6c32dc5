package router

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", h.healthz)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (h HttpRouter) healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.Map{"database": "ok"}
	healthy := true

	if h.deps.DB == nil {
		status["database"] = "unavailable"
		healthy = false
	} else if sqlDB, err := h.deps.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "unavailable"
		healthy = false
	}

	if h.deps.Cache != nil {
		status["cache"] = "ok"
		if err := h.deps.Cache.Ping(ctx).Err(); err != nil {
			// Redis only backs locks and rate limits; degrade, don't fail.
			status["cache"] = "unavailable"
		}
	}

	if !healthy {
		status["status"] = "unhealthy"
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	status["status"] = "ok"
	return c.JSON(status)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "localhost", 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
