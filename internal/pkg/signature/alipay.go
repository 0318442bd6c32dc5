package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

const (
	AlipaySignTypeRSA2 = "RSA2"
	AlipaySignTypeRSA  = "RSA"
)

// AlipayVerifier checks Alipay notification signatures with the Alipay
// platform public key.
type AlipayVerifier struct {
	publicKey *rsa.PublicKey
}

// NewAlipayVerifier parses key as PEM or as bare base64 PKIX.
func NewAlipayVerifier(key string) (*AlipayVerifier, error) {
	pub, err := ParsePublicKey(key)
	if err != nil {
		return nil, err
	}
	return &AlipayVerifier{publicKey: pub}, nil
}

func (v *AlipayVerifier) Verify(params map[string]string) error {
	if v == nil || v.publicKey == nil {
		return invalid("alipay", "public key not configured")
	}
	raw := strings.TrimSpace(params["sign"])
	if raw == "" {
		return invalid("alipay", "missing sign")
	}
	sig, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return invalid("alipay", "sign is not base64")
	}
	hash, digest := alipayDigest(params["sign_type"], canonical(params, "sign", "sign_type"))
	if err := rsa.VerifyPKCS1v15(v.publicKey, hash, digest, sig); err != nil {
		return invalid("alipay", "mismatch")
	}
	return nil
}

// SignAlipay signs params for an outbound Alipay gateway request.
func SignAlipay(params map[string]string, key *rsa.PrivateKey, signType string) (string, error) {
	if key == nil {
		return "", errors.New("signature: alipay private key not configured")
	}
	hash, digest := alipayDigest(signType, canonical(params, "sign"))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, hash, digest)
	if err != nil {
		return "", fmt.Errorf("signature: sign alipay request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func alipayDigest(signType, payload string) (crypto.Hash, []byte) {
	if strings.EqualFold(signType, AlipaySignTypeRSA) {
		sum := sha1.Sum([]byte(payload))
		return crypto.SHA1, sum[:]
	}
	sum := sha256.Sum256([]byte(payload))
	return crypto.SHA256, sum[:]
}

func decodeKeyBlock(key string) ([]byte, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, errors.New("signature: empty key")
	}
	if block, _ := pem.Decode([]byte(trimmed)); block != nil {
		return block.Bytes, nil
	}
	der, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("signature: key is neither PEM nor base64: %w", err)
	}
	return der, nil
}

// ParsePublicKey reads an RSA public key in PKIX or PKCS#1 form.
func ParsePublicKey(key string) (*rsa.PublicKey, error) {
	der, err := decodeKeyBlock(key)
	if err != nil {
		return nil, err
	}
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("signature: public key is not RSA")
		}
		return rsaPub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("signature: parse public key: %w", err)
	}
	return pub, nil
}

// ParsePrivateKey reads an RSA private key in PKCS#8 or PKCS#1 form.
func ParsePrivateKey(key string) (*rsa.PrivateKey, error) {
	der, err := decodeKeyBlock(key)
	if err != nil {
		return nil, err
	}
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("signature: private key is not RSA")
		}
		return rsaKey, nil
	}
	k, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("signature: parse private key: %w", err)
	}
	return k, nil
}
