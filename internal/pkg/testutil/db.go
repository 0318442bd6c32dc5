// Package testutil provides in-memory databases for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/MemberPay/app/models"
)

// NewDB opens a private in-memory SQLite database with every payment table
// migrated. The pool is capped at one connection so concurrent callers
// serialize instead of hitting SQLITE_LOCKED.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memberpay_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

// CreateUser inserts an active free-tier user.
func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{
		Name:           name,
		Email:          name + "@example.com",
		Role:           models.ROLE_USER,
		Status:         models.STATUS_ACTIVE,
		MembershipType: models.MembershipFree,
		QuotaTotal:     20,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return u
}

// SetQuota overwrites the quota columns of a user regardless of its
// membership version.
func SetQuota(t *testing.T, db *gorm.DB, userID uint, total, used int, resetAt *time.Time) {
	t.Helper()
	err := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"quota_total":    total,
		"quota_used":     used,
		"quota_reset_at": resetAt,
	}).Error
	if err != nil {
		t.Fatalf("set quota failed: %v", err)
	}
}
