package membership

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberPay/app/models"
)

// DowngradeLapsed moves every paid member whose expiry is before today back
// to free. Each user is handled in its own transaction; a user upgraded
// concurrently is left alone. It returns how many users were downgraded.
func (a *Activator) DowngradeLapsed(ctx context.Context) (int, error) {
	today := startOfDay(a.now())
	var afterID uint
	downgraded := 0
	for {
		users, err := a.memberships.ListLapsed(ctx, today, afterID, lapseBatchSize)
		if err != nil {
			return downgraded, fmt.Errorf("membership: list lapsed users: %w", err)
		}
		for i := range users {
			afterID = users[i].ID
			if err := ctx.Err(); err != nil {
				return downgraded, err
			}
			done, err := a.downgradeOne(ctx, users[i].ID)
			if err != nil {
				log.Errorf("[Membership] downgrade of user %d failed: %v", users[i].ID, err)
				continue
			}
			if done {
				downgraded++
			}
		}
		if len(users) < lapseBatchSize {
			return downgraded, nil
		}
	}
}

func (a *Activator) downgradeOne(ctx context.Context, userID uint) (bool, error) {
	done := false
	err := a.tx.Exec(ctx, func(ctx context.Context) error {
		user, err := a.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		today := startOfDay(a.now())
		if !user.IsPaidMember() || user.MembershipExpiresAt == nil || !user.MembershipExpiresAt.Before(today) {
			return nil
		}

		ok, err := a.memberships.UpdateMembership(ctx, user.ID, user.MembershipVersion, models.MembershipFree, nil)
		if err != nil {
			return err
		}
		if !ok {
			log.Warnf("[Membership] user %d changed during downgrade, skipping", user.ID)
			return nil
		}
		previous := user.MembershipType
		user.MembershipType = models.MembershipFree
		user.MembershipExpiresAt = nil
		user.MembershipVersion++

		if err := a.memberships.CloseActiveRecords(ctx, user.ID, models.MembershipRecordExpired); err != nil {
			return err
		}
		if err := a.memberships.CreateRecord(ctx, &models.MembershipRecord{
			UserID:         user.ID,
			MembershipType: models.MembershipFree,
			StartDate:      today,
			Action:         models.MembershipActionExpired,
			Status:         models.MembershipRecordActive,
		}); err != nil {
			return err
		}
		if err := a.quota.ResetForTier(ctx, user, models.MembershipFree); err != nil {
			return err
		}
		log.Infof("[Membership] user %d downgraded from %s to free", user.ID, previous)
		done = true
		return nil
	})
	return done, err
}
