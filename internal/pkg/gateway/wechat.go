package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/internal/pkg/signature"
)

// WeChatProvider opens NATIVE (QR code) payments through the unified order API.
type WeChatProvider struct {
	cfg      WeChatConfig
	http     *resty.Client
	verifier *signature.WeChatVerifier
}

func NewWeChatProvider(cfg WeChatConfig, timeout time.Duration, retries int) *WeChatProvider {
	return &WeChatProvider{
		cfg:      cfg,
		http:     newHTTPClient(cfg.BaseURL, timeout, retries),
		verifier: signature.NewWeChatVerifier(cfg.APIKey),
	}
}

func (p *WeChatProvider) Name() string   { return models.PaymentProviderWeChat }
func (p *WeChatProvider) Method() string { return models.PaymentMethodWeChat }

func (p *WeChatProvider) CreatePayment(ctx context.Context, req PaymentRequest) (*ProviderResult, error) {
	params := map[string]string{
		"appid":            p.cfg.AppID,
		"mch_id":           p.cfg.MchID,
		"nonce_str":        strings.ReplaceAll(uuid.NewString(), "-", ""),
		"body":             req.Subject,
		"out_trade_no":     req.OrderID,
		"total_fee":        strconv.FormatInt(req.Amount, 10),
		"fee_type":         req.Currency,
		"spbill_create_ip": "127.0.0.1",
		"notify_url":       p.cfg.NotifyURL,
		"trade_type":       "NATIVE",
		"product_id":       req.OrderID,
	}
	if !req.ExpiresAt.IsZero() {
		params["time_expire"] = req.ExpiresAt.Format("20060102150405")
	}
	sign, err := signature.SignWeChat(params, p.cfg.APIKey, signature.WeChatSignTypeMD5)
	if err != nil {
		return nil, err
	}

	m := mxj.Map{}
	for k, v := range params {
		m[k] = v
	}
	m["sign"] = sign
	body, err := m.Xml("xml")
	if err != nil {
		return nil, fmt.Errorf("encode unified order: %w", err)
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/xml; charset=utf-8").
		SetBody(body).
		Post("/pay/unifiedorder")
	if err != nil {
		return nil, fmt.Errorf("unified order request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unified order http status %d", resp.StatusCode())
	}

	out, err := mxj.NewMapXml(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode unified order response: %w", err)
	}
	root, ok := out["xml"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unified order response has no <xml> root")
	}
	result := make(map[string]string, len(root))
	for k, v := range root {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}

	if result["return_code"] != "SUCCESS" {
		return nil, fmt.Errorf("unified order rejected: %s", result["return_msg"])
	}
	if err := p.verifier.Verify(result); err != nil {
		return nil, err
	}
	if result["result_code"] != "SUCCESS" {
		return nil, fmt.Errorf("unified order failed: %s %s", result["err_code"], result["err_code_des"])
	}
	if result["code_url"] == "" {
		return nil, errors.New("unified order response without code_url")
	}
	return &ProviderResult{
		ProviderOrderID: result["prepay_id"],
		PaymentURL:      result["code_url"],
		QRCode:          result["code_url"],
	}, nil
}
