// Package quota sets per-tier usage bounds on users. Consumers enforce the
// bounds; this package only resets them.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/entitlements"
)

const sweepBatchSize = 100

// ErrMembershipChanged means the user's membership moved on after the user
// row was read, so the quota for the old tier was not written.
var ErrMembershipChanged = errors.New("quota: membership changed since read")

// Manager resets quota counters according to the membership tier.
type Manager struct {
	users repository.UserRepository
	now   func() time.Time
}

// NewManager creates a quota manager. A nil now uses time.Now.
func NewManager(users repository.UserRepository, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{users: users, now: now}
}

// PeriodEnd returns when the quota period that contains now ends: the next
// midnight for free users, the first day of the next month otherwise.
func PeriodEnd(plan entitlements.Plan, now time.Time) time.Time {
	y, m, d := now.Date()
	if plan == entitlements.PlanFree {
		return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	}
	return time.Date(y, m+1, 1, 0, 0, 0, 0, now.Location())
}

// ResetForTier starts a fresh period with the quota of tier: the total is
// set and usage cleared. The write only applies while the membership is
// still at user.MembershipVersion. The user struct is updated in place.
func (m *Manager) ResetForTier(ctx context.Context, user *models.User, tier string) error {
	plan := entitlements.Normalize(tier)
	total := entitlements.QuotaFor(plan)
	resetAt := PeriodEnd(plan, m.now())

	ok, err := m.users.UpdateQuota(ctx, user.ID, user.MembershipVersion, total, 0, &resetAt)
	if err != nil {
		return fmt.Errorf("quota: reset user %d to %s: %w", user.ID, plan, err)
	}
	if !ok {
		return fmt.Errorf("%w: user %d", ErrMembershipChanged, user.ID)
	}
	user.QuotaTotal = total
	user.QuotaUsed = 0
	user.QuotaResetAt = &resetAt
	return nil
}

// ResetDue starts a new period for every user whose period has ended and
// returns how many users were reset.
func (m *Manager) ResetDue(ctx context.Context) (int, error) {
	now := m.now()
	var afterID uint
	reset := 0
	for {
		users, err := m.users.ListQuotaDue(ctx, now, afterID, sweepBatchSize)
		if err != nil {
			return reset, fmt.Errorf("quota: list due users: %w", err)
		}
		for i := range users {
			u := &users[i]
			afterID = u.ID
			if err := m.ResetForTier(ctx, u, u.MembershipType); err != nil {
				if errors.Is(err, ErrMembershipChanged) {
					log.Infof("[Quota] user %d changed membership during sweep, skipping", u.ID)
					continue
				}
				log.Errorf("[Quota] reset failed for user %d: %v", u.ID, err)
				continue
			}
			reset++
		}
		if len(users) < sweepBatchSize {
			return reset, nil
		}
	}
}

// Remaining returns how much quota the user has left in this period.
func Remaining(user *models.User) int {
	if user == nil {
		return 0
	}
	left := user.QuotaTotal - user.QuotaUsed
	if left < 0 {
		return 0
	}
	return left
}

// CanConsume reports whether n more units fit into the user's quota.
func CanConsume(user *models.User, n int) bool {
	return n >= 0 && Remaining(user) >= n
}
