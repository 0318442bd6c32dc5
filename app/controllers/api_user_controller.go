package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/quota"
	"github.com/ManuelReschke/MemberPay/internal/pkg/usercontext"
)

// HandleGetAccount returns membership and quota of the authenticated user.
func (pc *PaymentController) HandleGetAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	account, err := pc.users.GetByID(c.UserContext(), userCtx.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		log.Errorf("[Payment] load account %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	return c.JSON(fiber.Map{
		"user_id": account.ID,
		"membership": fiber.Map{
			"type":       account.MembershipType,
			"expires_at": formatTimePtr(account.MembershipExpiresAt),
		},
		"quota": fiber.Map{
			"total":     account.QuotaTotal,
			"used":      account.QuotaUsed,
			"remaining": quota.Remaining(account),
			"reset_at":  formatTimePtr(account.QuotaResetAt),
		},
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
