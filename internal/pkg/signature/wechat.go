package signature

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	WeChatSignTypeMD5        = "MD5"
	WeChatSignTypeHMACSHA256 = "HMAC-SHA256"
)

// WeChatVerifier checks WeChat Pay v2 signatures keyed by the merchant API key.
type WeChatVerifier struct {
	APIKey string
}

func NewWeChatVerifier(apiKey string) *WeChatVerifier {
	return &WeChatVerifier{APIKey: apiKey}
}

func (v *WeChatVerifier) Verify(params map[string]string) error {
	if strings.TrimSpace(v.APIKey) == "" {
		return invalid("wechat", "api key not configured")
	}
	got := strings.TrimSpace(params["sign"])
	if got == "" {
		return invalid("wechat", "missing sign")
	}
	want, err := SignWeChat(params, v.APIKey, params["sign_type"])
	if err != nil {
		return invalid("wechat", "%v", err)
	}
	if !hmac.Equal([]byte(strings.ToUpper(got)), []byte(want)) {
		return invalid("wechat", "mismatch")
	}
	return nil
}

// SignWeChat computes the upper-case hex signature of params. signType
// selects HMAC-SHA256; anything else signs with MD5.
func SignWeChat(params map[string]string, apiKey, signType string) (string, error) {
	payload := canonical(params, "sign") + "&key=" + apiKey

	var sum []byte
	if strings.EqualFold(signType, WeChatSignTypeHMACSHA256) {
		mac := hmac.New(sha256.New, []byte(apiKey))
		mac.Write([]byte(payload))
		sum = mac.Sum(nil)
	} else {
		h := md5.Sum([]byte(payload))
		sum = h[:]
	}
	return strings.ToUpper(hex.EncodeToString(sum)), nil
}
