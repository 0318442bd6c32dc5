package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/MemberPay/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)
	UpdateQuota(ctx context.Context, userID uint, expectVersion int, total, used int, resetAt *time.Time) (bool, error)
	ListQuotaDue(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.User, error)
}

// OrderRepository defines the interface for payment order and transaction
// persistence. Every status change is a conditional update that reports
// whether this caller performed it.
type OrderRepository interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	GetByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	SetProviderDetails(ctx context.Context, orderID, providerOrderID, paymentURL, qrCode string) error
	MarkFailed(ctx context.Context, orderID, reason string) (bool, error)
	Complete(ctx context.Context, orderID, providerTransactionID string, completedAt time.Time) (bool, error)
	MarkRefunded(ctx context.Context, orderID string) (bool, error)
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
	InsertTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	ListTransactions(ctx context.Context, orderID string) ([]models.PaymentTransaction, error)
}

// MembershipRepository defines the interface for membership projection
// updates and membership history.
type MembershipRepository interface {
	UpdateMembership(ctx context.Context, userID uint, expectVersion int, tier string, expiresAt *time.Time) (bool, error)
	ListLapsed(ctx context.Context, today time.Time, afterID uint, limit int) ([]models.User, error)
	CreateRecord(ctx context.Context, record *models.MembershipRecord) error
	CloseActiveRecords(ctx context.Context, userID uint, status string) error
	ListRecords(ctx context.Context, userID uint) ([]models.MembershipRecord, error)
}

// CallbackEventRepository stores verified provider notifications for audit.
type CallbackEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.PaymentCallbackEvent) (bool, *models.PaymentCallbackEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// Repositories holds all repository instances
type Repositories struct {
	Tx            Transactor
	User          UserRepository
	Order         OrderRepository
	Membership    MembershipRepository
	CallbackEvent CallbackEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tx:            NewTransactor(db),
		User:          NewUserRepository(db),
		Order:         NewOrderRepository(db),
		Membership:    NewMembershipRepository(db),
		CallbackEvent: NewCallbackEventRepository(db),
	}
}
