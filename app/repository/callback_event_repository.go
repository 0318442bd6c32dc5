package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/MemberPay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type callbackEventRepository struct {
	db *gorm.DB
}

// NewCallbackEventRepository creates a callback audit repository backed by GORM.
func NewCallbackEventRepository(db *gorm.DB) CallbackEventRepository {
	return &callbackEventRepository{db: db}
}

// CreateIfNotExists stores the event unless (provider, event_id) already
// exists. It returns whether a row was created together with the stored row.
func (r *callbackEventRepository) CreateIfNotExists(ctx context.Context, event *models.PaymentCallbackEvent) (bool, *models.PaymentCallbackEvent, error) {
	db := conn(ctx, r.db)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentCallbackEvent
	if err := db.Where("provider = ? AND event_id = ?", event.Provider, event.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *callbackEventRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return conn(ctx, r.db).Model(&models.PaymentCallbackEvent{}).Where("id = ?", id).Updates(updates).Error
}
