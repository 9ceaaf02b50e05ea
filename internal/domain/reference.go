package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const walletNumberLength = 13

// NewReference generates a globally unique, unguessable transaction
// reference: a UTC timestamp for operator legibility plus a random
// 8-hex-char suffix for uniqueness.
func NewReference() string {
	var suffix [4]byte
	rand.Read(suffix[:])
	return fmt.Sprintf("TXN_%s_%s", time.Now().UTC().Format("20060102150405"), hex.EncodeToString(suffix[:]))
}

// NewWalletNumber generates a 13-digit public wallet number. Uniqueness
// is enforced by the store, which retries on collision.
func NewWalletNumber() string {
	digits := make([]byte, walletNumberLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			panic(err) // crypto/rand failure is unrecoverable
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits)
}
