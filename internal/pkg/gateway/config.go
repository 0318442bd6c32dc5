package gateway

import (
	"errors"
	"time"

	"github.com/ManuelReschke/MemberPay/internal/pkg/env"
)

const (
	defaultWeChatBaseURL    = "https://api.mch.weixin.qq.com"
	defaultAlipayGatewayURL = "https://openapi.alipay.com/gateway.do"
)

// WeChatConfig holds WeChat Pay v2 merchant settings
type WeChatConfig struct {
	AppID     string
	MchID     string
	APIKey    string
	NotifyURL string
	BaseURL   string
}

// Enabled reports whether enough is configured to create payments.
func (c WeChatConfig) Enabled() bool {
	return c.AppID != "" && c.MchID != "" && c.APIKey != ""
}

// AlipayConfig holds Alipay open platform settings
type AlipayConfig struct {
	AppID      string
	PrivateKey string // merchant application key, PEM or base64
	PublicKey  string // Alipay platform key, PEM or base64
	NotifyURL  string
	GatewayURL string
}

// Enabled reports whether enough is configured to create payments.
func (c AlipayConfig) Enabled() bool {
	return c.AppID != "" && c.PrivateKey != "" && c.PublicKey != ""
}

// Config holds provider and order creation settings
type Config struct {
	WeChat     WeChatConfig
	Alipay     AlipayConfig
	Timeout    time.Duration
	RetryCount int
	Subject    string
}

// LoadConfig loads payment gateway configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		WeChat: WeChatConfig{
			AppID:     env.GetEnv("WECHAT_APP_ID", ""),
			MchID:     env.GetEnv("WECHAT_MCH_ID", ""),
			APIKey:    env.GetEnv("WECHAT_API_KEY", ""),
			NotifyURL: env.GetEnv("WECHAT_NOTIFY_URL", ""),
			BaseURL:   env.GetEnv("WECHAT_BASE_URL", defaultWeChatBaseURL),
		},
		Alipay: AlipayConfig{
			AppID:      env.GetEnv("ALIPAY_APP_ID", ""),
			PrivateKey: env.GetEnv("ALIPAY_PRIVATE_KEY", ""),
			PublicKey:  env.GetEnv("ALIPAY_PUBLIC_KEY", ""),
			NotifyURL:  env.GetEnv("ALIPAY_NOTIFY_URL", ""),
			GatewayURL: env.GetEnv("ALIPAY_GATEWAY_URL", defaultAlipayGatewayURL),
		},
		Timeout:    env.GetEnvDuration("PAYMENT_PROVIDER_TIMEOUT", 10*time.Second),
		RetryCount: env.GetEnvInt("PAYMENT_PROVIDER_RETRIES", 2),
		Subject:    env.GetEnv("PAYMENT_SUBJECT", "Membership"),
	}

	if cfg.Timeout <= 0 {
		return nil, errors.New("PAYMENT_PROVIDER_TIMEOUT must be positive")
	}
	if cfg.RetryCount < 0 {
		return nil, errors.New("PAYMENT_PROVIDER_RETRIES must not be negative")
	}
	if cfg.WeChat.Enabled() && cfg.WeChat.NotifyURL == "" {
		return nil, errors.New("WECHAT_NOTIFY_URL is required when WeChat Pay is configured")
	}
	if cfg.Alipay.Enabled() && cfg.Alipay.NotifyURL == "" {
		return nil, errors.New("ALIPAY_NOTIFY_URL is required when Alipay is configured")
	}
	return cfg, nil
}
