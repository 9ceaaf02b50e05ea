package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kudiops/walletcore/internal/domain"
	"github.com/kudiops/walletcore/internal/events"
	"github.com/kudiops/walletcore/internal/paystack"
	"github.com/kudiops/walletcore/internal/store"
)

// ReconcileOutcome describes what a webhook delivery did to the ledger.
type ReconcileOutcome int

const (
	// OutcomeCredited: the pending deposit was credited exactly once.
	OutcomeCredited ReconcileOutcome = iota
	// OutcomeDuplicate: reference already finalized; acked, no mutation.
	OutcomeDuplicate
	// OutcomeFailed: deposit marked failed (mismatch or processor failure).
	OutcomeFailed
	// OutcomeIgnored: event type this ledger does not act on.
	OutcomeIgnored
)

func (o ReconcileOutcome) String() string {
	switch o {
	case OutcomeCredited:
		return "credited"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	case OutcomeIgnored:
		return "ignored"
	}
	return "unknown"
}

// SeenCache is an optional fast path for already-finalized references.
type SeenCache interface {
	Seen(ctx context.Context, reference string) bool
	Mark(ctx context.Context, reference string) error
}

// chargeEvent is the Paystack webhook envelope this ledger consumes.
type chargeEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"` // kobo, as reported by the processor
		Status    string `json:"status"`
	} `json:"data"`
}

// Reconciler is the only component that credits wallets from external
// money. Its entire effect is replayable: delivering the same payload N
// times produces one credit and N acks.
type Reconciler struct {
	store     Store
	secret    string
	seen      SeenCache
	publisher events.Publisher
	logger    *zap.Logger
}

func NewReconciler(s Store, secret string, seen SeenCache, publisher events.Publisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: s, secret: secret, seen: seen, publisher: publisher, logger: logger}
}

// Reconcile verifies and applies one webhook delivery. Signature failure
// rejects with no further action; everything after verification runs to
// a terminal status or returns an error for the processor to retry.
func (r *Reconciler) Reconcile(ctx context.Context, body []byte, signature string) (ReconcileOutcome, error) {
	if !paystack.VerifySignature(r.secret, body, signature) {
		r.logger.Warn("webhook signature verification failed")
		return 0, domain.ErrInvalidSignature
	}

	var event chargeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return 0, fmt.Errorf("malformed webhook payload: %w", err)
	}
	if event.Event != "charge.success" {
		r.logger.Info("ignoring webhook event", zap.String("event", event.Event))
		return OutcomeIgnored, nil
	}
	if event.Data.Reference == "" || event.Data.Amount <= 0 {
		return 0, fmt.Errorf("malformed webhook payload: missing reference or amount")
	}

	reference := event.Data.Reference
	if r.seen != nil && r.seen.Seen(ctx, reference) {
		return OutcomeDuplicate, nil
	}

	outcome, txn, err := r.store.FinalizeDeposit(ctx, reference, event.Data.Amount, event.Data.Status == "success")
	if err != nil {
		if errors.Is(err, domain.ErrUnknownReference) {
			r.logger.Warn("webhook for unknown reference", zap.String("reference", reference))
		}
		return 0, err
	}

	switch outcome {
	case store.FinalizeDuplicate:
		r.markSeen(ctx, reference)
		return OutcomeDuplicate, nil
	case store.FinalizeFailed:
		r.logger.Warn("deposit marked failed",
			zap.String("reference", reference),
			zap.String("reason", txn.FailureReason))
		r.markSeen(ctx, reference)
		r.publish(ctx, events.KeyDepositFailed, txn)
		return OutcomeFailed, nil
	default:
		r.logger.Info("deposit credited",
			zap.String("reference", reference),
			zap.String("user", txn.UserID),
			zap.Int64("amount", txn.Amount))
		r.markSeen(ctx, reference)
		r.publish(ctx, events.KeyDepositCompleted, txn)
		return OutcomeCredited, nil
	}
}

func (r *Reconciler) markSeen(ctx context.Context, reference string) {
	if r.seen == nil {
		return
	}
	if err := r.seen.Mark(ctx, reference); err != nil {
		r.logger.Warn("seen-cache mark failed", zap.String("reference", reference), zap.Error(err))
	}
}

func (r *Reconciler) publish(ctx context.Context, key string, txn *domain.Transaction) {
	if r.publisher == nil {
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
	if err := r.publisher.Publish(ctx, key, event); err != nil {
		r.logger.Error("event publish failed", zap.String("routing_key", key), zap.Error(err))
	}
}
