package models

import "time"

// PaymentCallbackEvent stores verified provider notifications with
// deduplication metadata for auditing.
type PaymentCallbackEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_payment_callback_events_provider_event,unique,priority:1" json:"provider"`
	EventID         string     `gorm:"type:varchar(191);not null;index:ux_payment_callback_events_provider_event,unique,priority:2" json:"event_id"`
	OrderID         string     `gorm:"type:varchar(64);default:'';index" json:"order_id"`
	PayloadHash     string     `gorm:"type:char(64);not null" json:"payload_hash"`
	Payload         string     `gorm:"type:longtext;not null" json:"payload"`
	ProcessedAt     *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentCallbackEvent) TableName() string { return "payment_callback_events" }
