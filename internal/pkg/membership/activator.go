// Package membership applies paid orders to the user's membership
// projection and downgrades lapsed members.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/app/repository"
	"github.com/ManuelReschke/MemberPay/internal/pkg/entitlements"
	"github.com/ManuelReschke/MemberPay/internal/pkg/quota"
)

// ErrConcurrentMembershipChange means the user row changed between read and
// write. The surrounding transaction should be rolled back and retried.
var ErrConcurrentMembershipChange = errors.New("membership: concurrent membership change")

const lapseBatchSize = 100

// Activator owns writes to the membership fields of users.
type Activator struct {
	tx          repository.Transactor
	users       repository.UserRepository
	memberships repository.MembershipRepository
	quota       *quota.Manager
	now         func() time.Time
}

// NewActivator wires an Activator. A nil now uses time.Now.
func NewActivator(repos *repository.Repositories, quotas *quota.Manager, now func() time.Time) *Activator {
	if now == nil {
		now = time.Now
	}
	return &Activator{
		tx:          repos.Tx,
		users:       repos.User,
		memberships: repos.Membership,
		quota:       quotas,
		now:         now,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Term computes the membership window bought by an order: it starts today,
// or at the current expiry when that is still in effect, and lasts months.
func Term(current *time.Time, months int, now time.Time) (start, end time.Time) {
	start = startOfDay(now)
	if current != nil && !current.Before(start) {
		start = *current
	}
	return start, start.AddDate(0, months, 0)
}

// Activate extends or changes the user's membership for a completed order.
// It must run inside the transaction that completes the order; ctx carries it.
func (a *Activator) Activate(ctx context.Context, order *models.PaymentOrder) (*models.User, error) {
	if order == nil {
		return nil, errors.New("membership: nil order")
	}
	plan := entitlements.Normalize(order.MembershipPlan)
	if plan == entitlements.PlanFree || order.MembershipDuration <= 0 {
		return nil, fmt.Errorf("membership: order %s has no purchasable plan", order.OrderID)
	}

	user, err := a.users.GetByID(ctx, order.UserID)
	if err != nil {
		return nil, fmt.Errorf("membership: load user %d: %w", order.UserID, err)
	}

	now := a.now()
	start, end := Term(user.MembershipExpiresAt, order.MembershipDuration, now)
	action := activationAction(user, string(plan), now)

	ok, err := a.memberships.UpdateMembership(ctx, user.ID, user.MembershipVersion, string(plan), &end)
	if err != nil {
		return nil, fmt.Errorf("membership: update user %d: %w", user.ID, err)
	}
	if !ok {
		return nil, ErrConcurrentMembershipChange
	}
	user.MembershipType = string(plan)
	user.MembershipExpiresAt = &end
	user.MembershipVersion++

	if err := a.memberships.CloseActiveRecords(ctx, user.ID, models.MembershipRecordSuperseded); err != nil {
		return nil, fmt.Errorf("membership: supersede records of user %d: %w", user.ID, err)
	}
	orderID := order.OrderID
	record := &models.MembershipRecord{
		UserID:         user.ID,
		MembershipType: string(plan),
		StartDate:      start,
		EndDate:        &end,
		OrderID:        &orderID,
		Action:         action,
		Status:         models.MembershipRecordActive,
	}
	if err := a.memberships.CreateRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("membership: record activation of user %d: %w", user.ID, err)
	}

	if err := a.quota.ResetForTier(ctx, user, string(plan)); err != nil {
		if errors.Is(err, quota.ErrMembershipChanged) {
			return nil, ErrConcurrentMembershipChange
		}
		return nil, err
	}

	log.Infof("[Membership] user %d %s %s until %s (order %s)", user.ID, action, plan, end.Format("2006-01-02"), order.OrderID)
	return user, nil
}

func activationAction(user *models.User, plan string, now time.Time) string {
	active := user.IsPaidMember() && user.MembershipExpiresAt != nil && !user.MembershipExpiresAt.Before(startOfDay(now))
	switch {
	case !active:
		return models.MembershipActionActivated
	case user.MembershipType == plan:
		return models.MembershipActionRenewed
	default:
		return models.MembershipActionUpgraded
	}
}
