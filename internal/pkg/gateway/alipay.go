package gateway

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ManuelReschke/MemberPay/app/models"
	"github.com/ManuelReschke/MemberPay/internal/pkg/pricing"
	"github.com/ManuelReschke/MemberPay/internal/pkg/signature"
)

const alipaySuccessCode = "10000"

// AlipayProvider opens QR code payments with alipay.trade.precreate.
type AlipayProvider struct {
	cfg  AlipayConfig
	http *resty.Client
	key  *rsa.PrivateKey
}

type alipayPrecreateResponse struct {
	Response struct {
		Code       string `json:"code"`
		Msg        string `json:"msg"`
		SubCode    string `json:"sub_code"`
		SubMsg     string `json:"sub_msg"`
		OutTradeNo string `json:"out_trade_no"`
		QRCode     string `json:"qr_code"`
	} `json:"alipay_trade_precreate_response"`
	Sign string `json:"sign"`
}

func NewAlipayProvider(cfg AlipayConfig, timeout time.Duration, retries int) (*AlipayProvider, error) {
	key, err := signature.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("alipay private key: %w", err)
	}
	return &AlipayProvider{
		cfg:  cfg,
		http: newHTTPClient("", timeout, retries),
		key:  key,
	}, nil
}

func (p *AlipayProvider) Name() string   { return models.PaymentProviderAlipay }
func (p *AlipayProvider) Method() string { return models.PaymentMethodAlipay }

func (p *AlipayProvider) CreatePayment(ctx context.Context, req PaymentRequest) (*ProviderResult, error) {
	biz := map[string]string{
		"out_trade_no": req.OrderID,
		"total_amount": pricing.FormatMajor(req.Amount),
		"subject":      req.Subject,
	}
	if !req.ExpiresAt.IsZero() {
		biz["time_expire"] = req.ExpiresAt.Format("2006-01-02 15:04:05")
	}
	bizContent, err := json.Marshal(biz)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"app_id":      p.cfg.AppID,
		"method":      "alipay.trade.precreate",
		"format":      "JSON",
		"charset":     "utf-8",
		"sign_type":   signature.AlipaySignTypeRSA2,
		"timestamp":   time.Now().Format("2006-01-02 15:04:05"),
		"version":     "1.0",
		"notify_url":  p.cfg.NotifyURL,
		"biz_content": string(bizContent),
	}
	sign, err := signature.SignAlipay(params, p.key, signature.AlipaySignTypeRSA2)
	if err != nil {
		return nil, err
	}
	params["sign"] = sign

	var out alipayPrecreateResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(params).
		SetResult(&out).
		ForceContentType("application/json").
		Post(p.cfg.GatewayURL)
	if err != nil {
		return nil, fmt.Errorf("precreate request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("precreate http status %d", resp.StatusCode())
	}

	r := out.Response
	if r.Code != alipaySuccessCode {
		return nil, fmt.Errorf("precreate failed: %s %s (%s %s)", r.Code, r.Msg, r.SubCode, r.SubMsg)
	}
	if r.QRCode == "" {
		return nil, errors.New("precreate response without qr_code")
	}
	return &ProviderResult{
		ProviderOrderID: r.OutTradeNo,
		PaymentURL:      r.QRCode,
		QRCode:          r.QRCode,
	}, nil
}
