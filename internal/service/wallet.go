package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kudiops/walletcore/internal/domain"
	"github.com/kudiops/walletcore/internal/events"
	"github.com/kudiops/walletcore/internal/store"
)

// Store is the persistence contract the ledger services run against.
// Both the Postgres and the in-memory store satisfy it; every method
// that mutates more than one entity is a single atomic unit inside the
// implementation.
type Store interface {
	CreateUserWallet(ctx context.Context, userID, email string) (*domain.Wallet, error)
	UserByID(ctx context.Context, userID string) (*domain.User, error)
	WalletByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	WalletByNumber(ctx context.Context, walletNumber string) (*domain.Wallet, error)
	CreateDeposit(ctx context.Context, txn *domain.Transaction) error
	SetAuthorizationURL(ctx context.Context, reference, url string) error
	DepositByReference(ctx context.Context, userID, reference string) (*domain.Transaction, error)
	TransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error)
	ExecTransfer(ctx context.Context, senderUserID, recipientWalletNumber string, amount int64, reference string) (*domain.Transaction, error)
	FinalizeDeposit(ctx context.Context, reference string, reportedAmount int64, processorSuccess bool) (store.FinalizeOutcome, *domain.Transaction, error)
}

// CheckoutClient is the outbound edge to the payment processor.
type CheckoutClient interface {
	InitializeTransaction(ctx context.Context, email string, amountKobo int64, reference string) (string, error)
}

// Wallet owns balances and the transaction audit trail. Callers arrive
// already authenticated and authorized; userID is the opaque identifier
// the identity system supplies.
type Wallet struct {
	store     Store
	checkout  CheckoutClient
	publisher events.Publisher
	logger    *zap.Logger
}

func NewWallet(s Store, checkout CheckoutClient, publisher events.Publisher, logger *zap.Logger) *Wallet {
	return &Wallet{store: s, checkout: checkout, publisher: publisher, logger: logger}
}

// Onboard creates the user and their wallet, exactly once per user.
// An empty userID gets a generated one.
func (w *Wallet) Onboard(ctx context.Context, userID, email string) (*domain.Wallet, error) {
	if userID == "" {
		userID = uuid.NewString()
	}
	return w.store.CreateUserWallet(ctx, userID, email)
}

func (w *Wallet) Balance(ctx context.Context, userID string) (*domain.Wallet, error) {
	return w.store.WalletByUserID(ctx, userID)
}

func (w *Wallet) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	if _, err := w.store.WalletByUserID(ctx, userID); err != nil {
		return nil, err
	}
	return w.store.TransactionsByUser(ctx, userID)
}

// Transfer moves amount kobo from the sender's wallet to the wallet
// identified by recipientWalletNumber. The reference is generated up
// front; only a committed transfer produces a ledger row.
func (w *Wallet) Transfer(ctx context.Context, senderUserID, recipientWalletNumber string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	reference := domain.NewReference()
	txn, err := w.store.ExecTransfer(ctx, senderUserID, recipientWalletNumber, amount, reference)
	if err != nil {
		return nil, err
	}

	w.logger.Info("transfer completed",
		zap.String("reference", txn.Reference),
		zap.String("sender", senderUserID),
		zap.String("recipient_wallet", recipientWalletNumber),
		zap.Int64("amount", amount))
	w.publish(ctx, events.KeyTransferCompleted, txn)
	return txn, nil
}

// InitiateDeposit records a pending deposit and asks the processor for a
// hosted-checkout URL. A processor timeout leaves the transaction
// pending — the charge may still have landed, and the webhook (or a
// later sweep) resolves it; the error lets the caller report the
// reference without a URL.
func (w *Wallet) InitiateDeposit(ctx context.Context, userID string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	user, err := w.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Reference: domain.NewReference(),
		Kind:      domain.KindDeposit,
		Amount:    amount,
		Status:    domain.StatusPending,
	}
	// Paystack is handed our reference, so its webhook carries it back.
	txn.PaystackReference = txn.Reference
	if err := w.store.CreateDeposit(ctx, txn); err != nil {
		return nil, err
	}

	url, err := w.checkout.InitializeTransaction(ctx, user.Email, amount, txn.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrProcessorTimeout) {
			w.logger.Warn("checkout initialization timed out, deposit left pending",
				zap.String("reference", txn.Reference))
			return txn, domain.ErrProcessorTimeout
		}
		// The processor may have accepted the charge before the error;
		// the row stays pending so reconciliation can still resolve it.
		return nil, fmt.Errorf("checkout initialization failed: %w", err)
	}

	if err := w.store.SetAuthorizationURL(ctx, txn.Reference, url); err != nil {
		w.logger.Error("persisting authorization url failed",
			zap.String("reference", txn.Reference), zap.Error(err))
	}
	txn.AuthorizationURL = url

	w.logger.Info("deposit initiated",
		zap.String("reference", txn.Reference),
		zap.String("user", userID),
		zap.Int64("amount", amount))
	return txn, nil
}

// DepositStatus is the owner-scoped read of a deposit's current state.
func (w *Wallet) DepositStatus(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	return w.store.DepositByReference(ctx, userID, reference)
}

func (w *Wallet) publish(ctx context.Context, key string, txn *domain.Transaction) {
	if w.publisher == nil {
		return
	}
	event := events.TransactionEvent{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Kind:          string(txn.Kind),
		Status:        string(txn.Status),
		UserID:        txn.UserID,
		Amount:        txn.Amount,
	}
	if err := w.publisher.Publish(ctx, key, event); err != nil {
		w.logger.Error("event publish failed", zap.String("routing_key", key), zap.Error(err))
	}
}
