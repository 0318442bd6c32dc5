package models

import "time"

// Membership tiers.
const (
	MembershipFree    = "free"
	MembershipBasic   = "basic"
	MembershipPremium = "premium"
	MembershipSuper   = "super"
)

const (
	MembershipActionActivated = "activated"
	MembershipActionRenewed   = "renewed"
	MembershipActionUpgraded  = "upgraded"
	MembershipActionExpired   = "expired"
)

const (
	MembershipRecordActive     = "active"
	MembershipRecordSuperseded = "superseded"
	MembershipRecordExpired    = "expired"
)

// MembershipRecord is the history row written on every tier change.
type MembershipRecord struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index:idx_membership_records_user_status,priority:1" json:"user_id"`
	MembershipType string     `gorm:"type:varchar(20);not null" json:"membership_type"`
	StartDate      time.Time  `gorm:"not null" json:"start_date"`
	EndDate        *time.Time `gorm:"default:null" json:"end_date,omitempty"`
	OrderID        *string    `gorm:"type:varchar(64);default:null;index" json:"order_id,omitempty"`
	Action         string     `gorm:"type:varchar(20);not null" json:"action"`
	Status         string     `gorm:"type:varchar(20);not null;default:'active';index:idx_membership_records_user_status,priority:2" json:"status"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (MembershipRecord) TableName() string { return "membership_records" }
