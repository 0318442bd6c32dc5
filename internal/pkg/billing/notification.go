package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/clbanning/mxj/v2"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/internal/pkg/pricing"
)

// ParseParams turns a raw callback body into the flat parameter map the
// provider signed.
func ParseParams(provider string, raw []byte) (map[string]string, error) {
	switch provider {
	case models.PaymentProviderWeChat:
		return parseWeChatXML(raw)
	case models.PaymentProviderAlipay:
		return parseAlipayForm(raw)
	default:
		return nil, ErrUnsupportedProvider
	}
}

func parseWeChatXML(raw []byte) (map[string]string, error) {
	m, err := mxj.NewMapXml(raw)
	if err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	root, ok := m["xml"].(map[string]interface{})
	if !ok {
		return nil, errors.New("missing <xml> root")
	}
	params := make(map[string]string, len(root))
	for k, v := range root {
		switch val := v.(type) {
		case string:
			params[k] = strings.TrimSpace(val)
		case nil:
			params[k] = ""
		default:
			params[k] = strings.TrimSpace(fmt.Sprint(val))
		}
	}
	return params, nil
}

func parseAlipayForm(raw []byte) (map[string]string, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	if len(values) == 0 {
		return nil, errors.New("empty form")
	}
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params, nil
}

// Normalize extracts the order reference, amount and outcome from verified
// params.
func Normalize(provider string, params map[string]string, raw []byte) (*Notification, error) {
	sum := sha256.Sum256(raw)
	n := &Notification{
		Provider:    provider,
		Params:      params,
		Raw:         string(raw),
		PayloadHash: hex.EncodeToString(sum[:]),
		OrderID:     strings.TrimSpace(params["out_trade_no"]),
	}
	if n.OrderID == "" {
		return nil, errors.New("missing out_trade_no")
	}

	var err error
	switch provider {
	case models.PaymentProviderWeChat:
		err = normalizeWeChat(n, params)
	case models.PaymentProviderAlipay:
		err = normalizeAlipay(n, params)
	default:
		err = ErrUnsupportedProvider
	}
	if err != nil {
		return nil, err
	}
	if n.EventID == "" {
		n.EventID = "hash:" + n.PayloadHash
	}
	return n, nil
}

func normalizeWeChat(n *Notification, params map[string]string) error {
	n.ProviderTransactionID = params["transaction_id"]
	n.ProviderStatus = params["result_code"]
	if fee := strings.TrimSpace(params["total_fee"]); fee != "" {
		amount, err := strconv.ParseInt(fee, 10, 64)
		if err != nil || amount < 0 {
			return fmt.Errorf("invalid total_fee %q", fee)
		}
		n.Amount = amount
	}

	switch {
	case params["return_code"] != "SUCCESS":
		n.Outcome = OutcomePending
	case params["result_code"] == "SUCCESS":
		if params["total_fee"] == "" {
			return errors.New("missing total_fee")
		}
		n.Outcome = OutcomeSuccess
	default:
		n.Outcome = OutcomeFailure
	}
	return nil
}

func normalizeAlipay(n *Notification, params map[string]string) error {
	n.EventID = params["notify_id"]
	n.ProviderTransactionID = params["trade_no"]
	n.ProviderStatus = params["trade_status"]
	if total := strings.TrimSpace(params["total_amount"]); total != "" {
		amount, err := pricing.ToMinorUnits(total)
		if err != nil {
			return err
		}
		n.Amount = amount
	}

	if params["gmt_refund"] != "" || isPositiveAmount(params["refund_fee"]) {
		n.Outcome = OutcomeRefund
		return nil
	}
	switch params["trade_status"] {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		if params["total_amount"] == "" {
			return errors.New("missing total_amount")
		}
		n.Outcome = OutcomeSuccess
	case "TRADE_CLOSED":
		n.Outcome = OutcomeFailure
	default:
		n.Outcome = OutcomePending
	}
	return nil
}

func isPositiveAmount(raw string) bool {
	amount, err := pricing.ToMinorUnits(strings.TrimSpace(raw))
	return err == nil && amount > 0
}
