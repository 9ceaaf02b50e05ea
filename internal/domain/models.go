package domain

import (
	"time"
)

// TransactionKind distinguishes externally funded deposits from internal transfers.
type TransactionKind string

const (
	KindDeposit  TransactionKind = "deposit"
	KindTransfer TransactionKind = "transfer"
)

// TransactionStatus is the lifecycle state of a transaction.
// pending is the only non-terminal state; success and failed are final.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// Terminal reports whether s permits no further transitions.
func (s TransactionStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Wallet is a user's internal balance. One wallet per user, identified
// publicly by a fixed-length numeric wallet number. Balance is held in
// kobo (minor units) and is never negative.
type Wallet struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	WalletNumber string    `json:"wallet_number"`
	Balance      int64     `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transaction is the immutable audit record of one attempted money movement.
type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Reference string            `json:"reference"`
	Kind      TransactionKind   `json:"type"`
	Amount    int64             `json:"amount"`
	Status    TransactionStatus `json:"status"`

	// Transfer snapshot, recorded from the sender's side.
	SenderWalletNumber    string `json:"sender_wallet_number,omitempty"`
	RecipientWalletNumber string `json:"recipient_wallet_number,omitempty"`
	RecipientUserID       string `json:"recipient_user_id,omitempty"`

	// Deposit reconciliation fields.
	PaystackReference string `json:"paystack_reference,omitempty"`
	ReportedAmount    int64  `json:"reported_amount,omitempty"`
	AuthorizationURL  string `json:"authorization_url,omitempty"`
	FailureReason     string `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is the minimal projection of the external identity system's user
// that the ledger needs for onboarding and processor checkout.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
