package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrMissingSecret = errors.New("payment: signing secret is not configured")

// SignatureVerifier checks the checkout signature the gateway hands back to
// the client: hex(HMAC-SHA256(secret, gatewayOrderId + "|" + paymentId)).
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

func (v *SignatureVerifier) Sign(paymentID, gatewayOrderID string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyPayment reports whether signature matches. A malformed signature is
// a mismatch, not an error.
func (v *SignatureVerifier) VerifyPayment(ctx context.Context, paymentID, gatewayOrderID, signature string) (bool, error) {
	expected, err := v.Sign(paymentID, gatewayOrderID)
	if err != nil {
		return false, err
	}
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false, nil
	}
	want, _ := hex.DecodeString(expected)
	return hmac.Equal(got, want), nil
}
