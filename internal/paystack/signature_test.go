package paystack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "sk_test_secret"
	body := []byte(`{"event":"charge.success","data":{"reference":"TXN_1","amount":5000}}`)

	sig := Signature(secret, body)
	assert.True(t, VerifySignature(secret, body, sig))

	assert.False(t, VerifySignature(secret, []byte(`tampered`), sig), "tampered body must fail")
	assert.False(t, VerifySignature("other_secret", body, sig), "wrong secret must fail")
	assert.False(t, VerifySignature(secret, body, ""), "missing signature must fail")
	assert.False(t, VerifySignature("", body, sig), "unset secret must fail closed")
}
