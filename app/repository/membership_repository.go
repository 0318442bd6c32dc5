package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/MemberPay/app/models"
	"gorm.io/gorm"
)

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository instance
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// UpdateMembership writes the membership projection if nobody changed it
// since expectVersion was read. It reports false when the guard did not match.
func (r *membershipRepository) UpdateMembership(ctx context.Context, userID uint, expectVersion int, tier string, expiresAt *time.Time) (bool, error) {
	res := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ? AND membership_version = ?", userID, expectVersion).
		Updates(map[string]interface{}{
			"membership_type":       tier,
			"membership_expires_at": expiresAt,
			"membership_version":    gorm.Expr("membership_version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListLapsed returns paid members whose expiry date is before today.
func (r *membershipRepository) ListLapsed(ctx context.Context, today time.Time, afterID uint, limit int) ([]models.User, error) {
	var users []models.User
	err := conn(ctx, r.db).
		Where("id > ? AND membership_type <> ? AND membership_expires_at IS NOT NULL AND membership_expires_at < ?",
			afterID, models.MembershipFree, today).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *membershipRepository) CreateRecord(ctx context.Context, record *models.MembershipRecord) error {
	return conn(ctx, r.db).Create(record).Error
}

// CloseActiveRecords moves every active record of the user to status.
func (r *membershipRepository) CloseActiveRecords(ctx context.Context, userID uint, status string) error {
	return conn(ctx, r.db).Model(&models.MembershipRecord{}).
		Where("user_id = ? AND status = ?", userID, models.MembershipRecordActive).
		Update("status", status).Error
}

func (r *membershipRepository) ListRecords(ctx context.Context, userID uint) ([]models.MembershipRecord, error) {
	var records []models.MembershipRecord
	err := conn(ctx, r.db).Where("user_id = ?", userID).Order("id ASC").Find(&records).Error
	return records, err
}
