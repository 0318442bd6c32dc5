package models

import "time"

// Order types.
const (
	OrderTypeMembership = "membership"
	OrderTypePoints     = "points"
)

// Payment methods accepted by the order API.
const (
	PaymentMethodWeChat     = "wechat"
	PaymentMethodAlipay     = "alipay"
	PaymentMethodCreditCard = "credit_card"
)

// Payment providers that deliver callbacks.
const (
	PaymentProviderWeChat = "wechat"
	PaymentProviderAlipay = "alipay"
)

// Order lifecycle states.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusExpired   = "expired"
	OrderStatusRefunded  = "refunded"
)

// OrderLifetime is how long a pending order can be paid.
const OrderLifetime = 30 * time.Minute

// PaymentOrder is a single intent to pay for a membership change. Rows are
// never deleted; they only move forward through the status machine.
type PaymentOrder struct {
	ID                    uint       `gorm:"primaryKey" json:"-"`
	OrderID               string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_id"`
	UserID                uint       `gorm:"not null;index" json:"user_id"`
	Type                  string     `gorm:"type:varchar(20);not null;default:'membership'" json:"type"`
	MembershipPlan        string     `gorm:"type:varchar(20);not null" json:"membership_plan"`
	MembershipDuration    int        `gorm:"not null" json:"membership_duration"`
	Amount                int64      `gorm:"not null" json:"amount"`
	Currency              string     `gorm:"type:varchar(8);not null;default:'CNY'" json:"currency"`
	PaymentMethod         string     `gorm:"type:varchar(20);not null" json:"payment_method"`
	Status                string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_payment_orders_status_expires,priority:1" json:"status"`
	ProviderOrderID       string     `gorm:"type:varchar(128);default:''" json:"provider_order_id"`
	ProviderTransactionID string     `gorm:"type:varchar(128);default:'';index" json:"provider_transaction_id"`
	PaymentURL            string     `gorm:"type:text" json:"payment_url"`
	QRCode                string     `gorm:"type:text" json:"qr_code"`
	FailureReason         string     `gorm:"type:varchar(64);default:''" json:"failure_reason,omitempty"`
	CreatedAt             time.Time  `gorm:"not null" json:"created_at"`
	ExpiresAt             time.Time  `gorm:"not null;index:idx_payment_orders_status_expires,priority:2" json:"expires_at"`
	CompletedAt           *time.Time `gorm:"default:null" json:"completed_at,omitempty"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentOrder) TableName() string { return "payment_orders" }

// IsPending reports whether the order can still be paid or expired.
func (o *PaymentOrder) IsPending() bool {
	return o != nil && o.Status == OrderStatusPending
}

// CanTransition reports whether moving an order from one status to another is
// legal: pending -> completed|failed|expired and completed -> refunded.
func CanTransition(from, to string) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusCompleted || to == OrderStatusFailed || to == OrderStatusExpired
	case OrderStatusCompleted:
		return to == OrderStatusRefunded
	default:
		return false
	}
}

// IsValidPaymentMethod reports whether m is one of the known payment methods.
func IsValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodWeChat, PaymentMethodAlipay, PaymentMethodCreditCard:
		return true
	default:
		return false
	}
}
