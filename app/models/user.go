package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User carries the membership projection. MembershipType and
// MembershipExpiresAt are only written by the activator and the lapse
// downgrade, each bumping MembershipVersion; quota columns only by the
// quota manager.
type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Name                string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email               string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Role                string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status              string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	APIKeyHash          string         `gorm:"type:varchar(64);not null;default:'';index" json:"-"`
	MembershipType      string         `gorm:"type:varchar(20);not null;default:'free';index" json:"membership_type" validate:"oneof=free basic premium super"`
	MembershipExpiresAt *time.Time     `gorm:"default:null;index" json:"membership_expires_at"`
	MembershipVersion   int            `gorm:"not null;default:0" json:"-"`
	QuotaTotal          int            `gorm:"not null;default:20" json:"quota_total"`
	QuotaUsed           int            `gorm:"not null;default:0" json:"quota_used"`
	QuotaResetAt        *time.Time     `gorm:"default:null;index" json:"quota_reset_at"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// IsPaidMember reports whether the user holds a non-free tier.
func (u *User) IsPaidMember() bool {
	return u.MembershipType != "" && u.MembershipType != MembershipFree
}

// HashAPIKey returns the hex sha256 digest stored in APIKeyHash.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey creates a random key, stores its hash on the user and
// returns the plaintext once.
func (u *User) GenerateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	key := "mp_" + hex.EncodeToString(b)
	u.APIKeyHash = HashAPIKey(key)
	return key, nil
}
