package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader is the header Paystack sends alongside every webhook.
const SignatureHeader = "x-paystack-signature"

// Signature computes the hex HMAC-SHA512 of payload under the shared
// secret, the scheme Paystack signs webhook bodies with.
func Signature(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload. The compare
// is constant time; this is the sole authenticity gate on the webhook
// endpoint.
func VerifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Signature(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
