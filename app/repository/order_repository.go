package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/MemberPay/app/models"
	"gorm.io/gorm"
)

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new payment order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	return translateError(conn(ctx, r.db).Create(order).Error)
}

func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := conn(ctx, r.db).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) SetProviderDetails(ctx context.Context, orderID, providerOrderID, paymentURL, qrCode string) error {
	return conn(ctx, r.db).Model(&models.PaymentOrder{}).
		Where("order_id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"provider_order_id": providerOrderID,
			"payment_url":       paymentURL,
			"qr_code":           qrCode,
		}).Error
}

// transition moves an order from one status to another only if it is still
// in the expected status.
func (r *orderRepository) transition(ctx context.Context, orderID, from, to string, updates map[string]interface{}) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	updates["status"] = to
	res := conn(ctx, r.db).Model(&models.PaymentOrder{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) MarkFailed(ctx context.Context, orderID, reason string) (bool, error) {
	return r.transition(ctx, orderID, models.OrderStatusPending, models.OrderStatusFailed, map[string]interface{}{
		"failure_reason": reason,
	})
}

func (r *orderRepository) Complete(ctx context.Context, orderID, providerTransactionID string, completedAt time.Time) (bool, error) {
	return r.transition(ctx, orderID, models.OrderStatusPending, models.OrderStatusCompleted, map[string]interface{}{
		"provider_transaction_id": providerTransactionID,
		"completed_at":            completedAt,
	})
}

func (r *orderRepository) MarkRefunded(ctx context.Context, orderID string) (bool, error) {
	return r.transition(ctx, orderID, models.OrderStatusCompleted, models.OrderStatusRefunded, map[string]interface{}{})
}

// ExpirePending flips every pending order whose window closed before now.
func (r *orderRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res := conn(ctx, r.db).Model(&models.PaymentOrder{}).
		Where("status = ? AND expires_at < ?", models.OrderStatusPending, now).
		Updates(map[string]interface{}{
			"status":         models.OrderStatusExpired,
			"failure_reason": "expired",
		})
	return res.RowsAffected, res.Error
}

func (r *orderRepository) InsertTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	return translateError(conn(ctx, r.db).Create(txn).Error)
}

func (r *orderRepository) ListTransactions(ctx context.Context, orderID string) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	err := conn(ctx, r.db).Where("order_id = ?", orderID).Order("id ASC").Find(&txns).Error
	return txns, err
}
