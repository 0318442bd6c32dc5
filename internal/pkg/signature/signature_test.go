package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSkipsEmptyAndExcluded(t *testing.T) {
	got := canonical(map[string]string{
		"b":    "2",
		"a":    "1",
		"sign": "XYZ",
		"c":    "",
	}, "sign")
	assert.Equal(t, "a=1&b=2", got)
}

func wechatParams() map[string]string {
	return map[string]string{
		"appid":          "wx2421b1c4370ec43b",
		"mch_id":         "10000100",
		"nonce_str":      "5K8264ILTKCH16CQ2502SI8ZNMTM67VS",
		"out_trade_no":   "PO20260301120000abcdef0123",
		"total_fee":      "39900",
		"result_code":    "SUCCESS",
		"return_code":    "SUCCESS",
		"transaction_id": "4200000001",
	}
}

func TestWeChatVerifyRoundTrip(t *testing.T) {
	for _, signType := range []string{"", WeChatSignTypeMD5, WeChatSignTypeHMACSHA256} {
		params := wechatParams()
		if signType != "" {
			params["sign_type"] = signType
		}
		sign, err := SignWeChat(params, "secret-key", signType)
		require.NoError(t, err)
		assert.Equal(t, strings.ToUpper(sign), sign)
		params["sign"] = sign

		v := NewWeChatVerifier("secret-key")
		assert.NoErrorf(t, v.Verify(params), "sign_type=%q", signType)

		params["sign"] = strings.ToLower(sign)
		assert.NoError(t, v.Verify(params), "comparison is case-insensitive")
	}
}

func TestWeChatVerifyRejects(t *testing.T) {
	params := wechatParams()
	sign, err := SignWeChat(params, "secret-key", "")
	require.NoError(t, err)
	params["sign"] = sign

	tampered := wechatParams()
	tampered["sign"] = sign
	tampered["total_fee"] = "1"

	cases := map[string]struct {
		key    string
		params map[string]string
	}{
		"tampered amount": {"secret-key", tampered},
		"wrong key":       {"other-key", params},
		"missing sign":    {"secret-key", wechatParams()},
		"no key":          {"", params},
	}
	for name, tc := range cases {
		err := NewWeChatVerifier(tc.key).Verify(tc.params)
		var ise *InvalidSignatureError
		assert.Truef(t, errors.As(err, &ise), "%s: %v", name, err)
	}
}

func newRSAKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, base64.StdEncoding.EncodeToString(der)
}

func TestAlipayVerifyRoundTrip(t *testing.T) {
	key, pubB64 := newRSAKey(t)
	for _, signType := range []string{AlipaySignTypeRSA2, AlipaySignTypeRSA} {
		params := map[string]string{
			"out_trade_no": "PO1",
			"trade_no":     "2026030122001",
			"trade_status": "TRADE_SUCCESS",
			"total_amount": "399.00",
			"sign_type":    signType,
		}
		sig, err := SignAlipay(map[string]string{
			"out_trade_no": "PO1",
			"trade_no":     "2026030122001",
			"trade_status": "TRADE_SUCCESS",
			"total_amount": "399.00",
		}, key, signType)
		require.NoError(t, err)
		params["sign"] = sig

		v, err := NewAlipayVerifier(pubB64)
		require.NoError(t, err)
		assert.NoErrorf(t, v.Verify(params), "sign_type=%s", signType)

		params["total_amount"] = "0.01"
		var ise *InvalidSignatureError
		assert.True(t, errors.As(v.Verify(params), &ise))
	}
}

func TestAlipayVerifierAcceptsPEMAndRejectsGarbage(t *testing.T) {
	key, _ := newRSAKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	v, err := NewAlipayVerifier(pemKey)
	require.NoError(t, err)

	var ise *InvalidSignatureError
	assert.True(t, errors.As(v.Verify(map[string]string{"a": "1"}), &ise))
	assert.True(t, errors.As(v.Verify(map[string]string{"a": "1", "sign": "%%%"}), &ise))
	assert.True(t, errors.As(v.Verify(map[string]string{"a": "1", "sign": base64.StdEncoding.EncodeToString([]byte("nope"))}), &ise))

	_, err = NewAlipayVerifier("not a key")
	assert.Error(t, err)
}

func TestParsePrivateKeyFormats(t *testing.T) {
	key, _ := newRSAKey(t)
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err := ParsePrivateKey(string(pkcs1))
	require.NoError(t, err)
	assert.Equal(t, key.N, parsed.N)

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	parsed, err = ParsePrivateKey(base64.StdEncoding.EncodeToString(pkcs8))
	require.NoError(t, err)
	assert.Equal(t, key.N, parsed.N)
}
