package domain

import "errors"

var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrRecipientNotFound      = errors.New("recipient wallet not found")
	ErrSelfTransfer           = errors.New("cannot transfer to own wallet")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidStateTransition = errors.New("transaction already finalized")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrUnknownReference       = errors.New("unknown transaction reference")
	ErrProcessorTimeout       = errors.New("payment processor timed out")
	ErrUserExists             = errors.New("user already onboarded")

	// ErrAlreadyProcessed is an internal signal, not surfaced to callers:
	// the webhook reference was claimed before, so the delivery is acked
	// without touching balances.
	ErrAlreadyProcessed = errors.New("webhook reference already processed")
)
