package models

import "time"

const (
	TransactionResultSuccess = "success"
	TransactionResultFailure = "failure"
)

// PaymentTransaction is an append-only row per attempted settlement.
//
// SuccessKey carries the order id for success rows and stays NULL otherwise,
// so the unique index on it allows at most one success per order while
// failure rows are unrestricted. SuccessTxnKey does the same for
// "provider:transaction id", so one provider payment settles one order.
type PaymentTransaction struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	OrderID               string    `gorm:"type:varchar(64);not null;index" json:"order_id"`
	Provider              string    `gorm:"type:varchar(20);not null;index:idx_payment_transactions_provider_txn,priority:1" json:"provider"`
	ProviderTransactionID string    `gorm:"type:varchar(128);not null;default:'';index:idx_payment_transactions_provider_txn,priority:2" json:"provider_transaction_id"`
	Amount                int64     `gorm:"not null" json:"amount"`
	Result                string    `gorm:"type:varchar(16);not null" json:"result"`
	Reason                string    `gorm:"type:varchar(64);default:''" json:"reason,omitempty"`
	RawProviderPayload    string    `gorm:"type:longtext" json:"raw_provider_payload"`
	SuccessKey            *string   `gorm:"type:varchar(64);uniqueIndex:ux_payment_transactions_success" json:"-"`
	SuccessTxnKey         *string   `gorm:"type:varchar(160);uniqueIndex:ux_payment_transactions_success_txn" json:"-"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

// NewSuccessTransaction builds the success row that claims an order.
func NewSuccessTransaction(orderID, provider, providerTxnID string, amount int64, raw string) *PaymentTransaction {
	key := orderID
	return &PaymentTransaction{
		OrderID:               orderID,
		Provider:              provider,
		ProviderTransactionID: providerTxnID,
		Amount:                amount,
		Result:                TransactionResultSuccess,
		RawProviderPayload:    raw,
		SuccessKey:            &key,
		SuccessTxnKey:         successTxnKey(provider, providerTxnID),
	}
}

func successTxnKey(provider, providerTxnID string) *string {
	if providerTxnID == "" {
		return nil
	}
	key := provider + ":" + providerTxnID
	return &key
}

// NewFailureTransaction builds a failure row with the given reason.
func NewFailureTransaction(orderID, provider, providerTxnID string, amount int64, reason, raw string) *PaymentTransaction {
	return &PaymentTransaction{
		OrderID:               orderID,
		Provider:              provider,
		ProviderTransactionID: providerTxnID,
		Amount:                amount,
		Result:                TransactionResultFailure,
		Reason:                reason,
		RawProviderPayload:    raw,
	}
}
