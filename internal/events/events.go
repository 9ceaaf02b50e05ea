package events

import "context"

// Exchange is the topic exchange ledger events are published to.
const Exchange = "ledger_events"

// Routing keys, one per terminal ledger outcome.
const (
	KeyTransferCompleted = "transaction.transfer.completed"
	KeyDepositCompleted  = "transaction.deposit.completed"
	KeyDepositFailed     = "transaction.deposit.failed"
)

// TransactionEvent is the wire shape consumed by the audit worker.
type TransactionEvent struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	Kind          string `json:"type"`
	Status        string `json:"status"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
}

// Publisher emits ledger events after the owning database transaction
// has committed. Publishing is best effort; a lost event never rolls a
// ledger mutation back.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event TransactionEvent) error
}
