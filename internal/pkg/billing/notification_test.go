package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MemberPay/app/models"
)

func TestParseWeChatXMLWithCDATA(t *testing.T) {
	raw := []byte(`<xml><return_code><![CDATA[SUCCESS]]></return_code><result_code><![CDATA[SUCCESS]]></result_code><out_trade_no><![CDATA[PO1]]></out_trade_no><total_fee>39900</total_fee><transaction_id><![CDATA[42000]]></transaction_id></xml>`)
	params, err := ParseParams(models.PaymentProviderWeChat, raw)
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", params["return_code"])
	assert.Equal(t, "39900", params["total_fee"])

	n, err := Normalize(models.PaymentProviderWeChat, params, raw)
	require.NoError(t, err)
	assert.Equal(t, "PO1", n.OrderID)
	assert.Equal(t, int64(39900), n.Amount)
	assert.Equal(t, OutcomeSuccess, n.Outcome)
	assert.Equal(t, "hash:"+n.PayloadHash, n.EventID)
}

func TestNormalizeAlipayOutcomes(t *testing.T) {
	cases := []struct {
		params map[string]string
		want   Outcome
	}{
		{map[string]string{"trade_status": "TRADE_SUCCESS", "total_amount": "1.00"}, OutcomeSuccess},
		{map[string]string{"trade_status": "TRADE_FINISHED", "total_amount": "1.00"}, OutcomeSuccess},
		{map[string]string{"trade_status": "TRADE_CLOSED", "total_amount": "1.00"}, OutcomeFailure},
		{map[string]string{"trade_status": "WAIT_BUYER_PAY", "total_amount": "1.00"}, OutcomePending},
		{map[string]string{"trade_status": "TRADE_SUCCESS", "total_amount": "1.00", "refund_fee": "1.00"}, OutcomeRefund},
		{map[string]string{"trade_status": "TRADE_CLOSED", "total_amount": "1.00", "gmt_refund": "2026-03-01 10:00:00"}, OutcomeRefund},
	}
	for _, tc := range cases {
		tc.params["out_trade_no"] = "PO1"
		n, err := Normalize(models.PaymentProviderAlipay, tc.params, []byte("raw"))
		require.NoError(t, err)
		assert.Equal(t, tc.want, n.Outcome, tc.params)
		assert.Equal(t, int64(100), n.Amount)
	}
}

func TestNormalizeRejectsMissingFields(t *testing.T) {
	_, err := Normalize(models.PaymentProviderWeChat, map[string]string{"return_code": "SUCCESS"}, nil)
	assert.Error(t, err)

	_, err = Normalize(models.PaymentProviderWeChat, map[string]string{
		"out_trade_no": "PO1", "return_code": "SUCCESS", "result_code": "SUCCESS", "total_fee": "12.5",
	}, nil)
	assert.Error(t, err)

	_, err = Normalize(models.PaymentProviderAlipay, map[string]string{
		"out_trade_no": "PO1", "trade_status": "TRADE_SUCCESS", "total_amount": "1.005",
	}, nil)
	assert.Error(t, err)
}

func TestAcks(t *testing.T) {
	assert.Equal(t, "success", SuccessAck(models.PaymentProviderAlipay).Body)
	assert.Equal(t, "fail", FailAck(models.PaymentProviderAlipay, "x").Body)
	assert.Contains(t, SuccessAck(models.PaymentProviderWeChat).Body, "<return_code><![CDATA[SUCCESS]]></return_code>")
	assert.Contains(t, FailAck(models.PaymentProviderWeChat, "").Body, "<return_code><![CDATA[FAIL]]></return_code>")
}
