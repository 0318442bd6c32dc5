package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusExpired, true},
		{OrderStatusPending, OrderStatusRefunded, false},
		{OrderStatusCompleted, OrderStatusRefunded, true},
		{OrderStatusCompleted, OrderStatusFailed, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusFailed, OrderStatusCompleted, false},
		{OrderStatusExpired, OrderStatusCompleted, false},
		{OrderStatusRefunded, OrderStatusCompleted, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestPaymentOrderIsPending(t *testing.T) {
	o := &PaymentOrder{Status: OrderStatusPending}
	assert.True(t, o.IsPending())

	o.Status = OrderStatusCompleted
	assert.False(t, o.IsPending())

	var nilOrder *PaymentOrder
	assert.False(t, nilOrder.IsPending())
}

func TestNewSuccessTransactionCarriesSuccessKey(t *testing.T) {
	tx := NewSuccessTransaction("PO1", PaymentProviderWeChat, "wx-1", 2900, "<xml/>")
	require.NotNil(t, tx.SuccessKey)
	assert.Equal(t, "PO1", *tx.SuccessKey)
	require.NotNil(t, tx.SuccessTxnKey)
	assert.Equal(t, "wechat:wx-1", *tx.SuccessTxnKey)
	assert.Equal(t, TransactionResultSuccess, tx.Result)

	failed := NewFailureTransaction("PO1", PaymentProviderWeChat, "wx-1", 2900, "amount_mismatch", "<xml/>")
	assert.Nil(t, failed.SuccessKey)
	assert.Nil(t, failed.SuccessTxnKey)

	anonymous := NewSuccessTransaction("PO2", PaymentProviderAlipay, "", 2900, "")
	assert.Nil(t, anonymous.SuccessTxnKey)
	assert.Equal(t, "amount_mismatch", failed.Reason)
}

func TestUserGenerateAPIKey(t *testing.T) {
	u := &User{ID: 1}

	key, err := u.GenerateAPIKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)

	assert.Equal(t, HashAPIKey(key), u.APIKeyHash)
	assert.Len(t, u.APIKeyHash, 64)
	assert.False(t, u.IsPaidMember())

	u.MembershipType = MembershipPremium
	assert.True(t, u.IsPaidMember())
}
