package repository

import (
	"context"
	"strings"
	"time"

	"github.com/ManuelReschke/MemberPay/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return translateError(conn(ctx, r.db).Create(user).Error)
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an API key hash to its user, whatever the status.
func (r *userRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := conn(ctx, r.db).
		Where("api_key_hash = ?", trimmed).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateQuota writes the quota columns if the membership is still at
// expectVersion. It reports false when the guard did not match.
func (r *userRepository) UpdateQuota(ctx context.Context, userID uint, expectVersion int, total, used int, resetAt *time.Time) (bool, error) {
	res := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ? AND membership_version = ?", userID, expectVersion).
		Updates(map[string]interface{}{
			"quota_total":    total,
			"quota_used":     used,
			"quota_reset_at": resetAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListQuotaDue returns users whose quota period ended at or before now,
// ordered by id and starting after afterID.
func (r *userRepository) ListQuotaDue(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.User, error) {
	var users []models.User
	err := conn(ctx, r.db).
		Where("id > ? AND (quota_reset_at IS NULL OR quota_reset_at <= ?)", afterID, now).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
