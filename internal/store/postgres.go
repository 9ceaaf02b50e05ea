package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kudiops/walletcore/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// LedgerStore is the Postgres-backed ledger. Every cross-entity mutation
// (debit+credit, claim+credit) runs inside a single database transaction,
// so correctness holds across multiple server instances sharing the pool.
type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(connString string) (*LedgerStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &LedgerStore{db: pool}, nil
}

func (s *LedgerStore) Close() {
	s.db.Close()
}

// EnsureSchema applies the embedded schema. Statements are idempotent.
func (s *LedgerStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// CreateUserWallet onboards a user and their wallet as one unit. The
// 13-digit wallet number is regenerated on the rare collision.
func (s *LedgerStore) CreateUserWallet(ctx context.Context, userID, email string) (*domain.Wallet, error) {
	for attempt := 0; attempt < 5; attempt++ {
		wallet, err := s.tryCreateUserWallet(ctx, userID, email)
		if err == nil {
			return wallet, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "wallets_wallet_number_key":
				continue
			default:
				return nil, domain.ErrUserExists
			}
		}
		return nil, err
	}
	return nil, fmt.Errorf("could not allocate a unique wallet number")
}

func (s *LedgerStore) tryCreateUserWallet(ctx context.Context, userID, email string) (*domain.Wallet, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO users (id, email) VALUES ($1, $2)",
		userID, email,
	)
	if err != nil {
		return nil, err
	}

	wallet := &domain.Wallet{
		ID:           uuid.NewString(),
		UserID:       userID,
		WalletNumber: domain.NewWalletNumber(),
	}
	err = tx.QueryRow(ctx,
		"INSERT INTO wallets (id, user_id, wallet_number) VALUES ($1, $2, $3) RETURNING balance, created_at, updated_at",
		wallet.ID, wallet.UserID, wallet.WalletNumber,
	).Scan(&wallet.Balance, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return wallet, nil
}

// UserByID returns the onboarded user projection.
func (s *LedgerStore) UserByID(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx, "SELECT id, email, created_at FROM users WHERE id = $1", userID).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const walletColumns = "id, user_id, wallet_number, balance, created_at, updated_at"

func scanWallet(row pgx.Row, notFound error) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.WalletNumber, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	w.WalletNumber = trimChar(w.WalletNumber)
	return &w, nil
}

// trimChar strips the blank padding CHAR(13) columns carry.
func trimChar(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

func (s *LedgerStore) WalletByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	row := s.db.QueryRow(ctx, "SELECT "+walletColumns+" FROM wallets WHERE user_id = $1", userID)
	return scanWallet(row, domain.ErrWalletNotFound)
}

func (s *LedgerStore) WalletByNumber(ctx context.Context, walletNumber string) (*domain.Wallet, error) {
	row := s.db.QueryRow(ctx, "SELECT "+walletColumns+" FROM wallets WHERE wallet_number = $1", walletNumber)
	return scanWallet(row, domain.ErrRecipientNotFound)
}

// CreateDeposit records the pending deposit row before the processor is
// contacted. The row has zero ledger effect until reconciled.
func (s *LedgerStore) CreateDeposit(ctx context.Context, txn *domain.Transaction) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO transactions (id, user_id, reference, kind, amount, status, paystack_reference)
		 VALUES ($1, $2, $3, 'deposit', $4, 'pending', $5)
		 RETURNING created_at, updated_at`,
		txn.ID, txn.UserID, txn.Reference, txn.Amount, txn.PaystackReference,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("deposit insert failed: %w", err)
	}
	return nil
}

// SetAuthorizationURL attaches the processor's hosted-checkout URL to a
// pending deposit once the processor responds.
func (s *LedgerStore) SetAuthorizationURL(ctx context.Context, reference, url string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE transactions SET authorization_url = $1, updated_at = now() WHERE reference = $2",
		url, reference,
	)
	return err
}

const txnColumns = `id, user_id, reference, kind, amount, status,
	COALESCE(sender_wallet_number, ''), COALESCE(recipient_wallet_number, ''),
	COALESCE(recipient_user_id::text, ''), COALESCE(paystack_reference, ''),
	COALESCE(reported_amount, 0), COALESCE(authorization_url, ''),
	COALESCE(failure_reason, ''), created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Reference, &t.Kind, &t.Amount, &t.Status,
		&t.SenderWalletNumber, &t.RecipientWalletNumber, &t.RecipientUserID,
		&t.PaystackReference, &t.ReportedAmount, &t.AuthorizationURL,
		&t.FailureReason, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.SenderWalletNumber = trimChar(t.SenderWalletNumber)
	t.RecipientWalletNumber = trimChar(t.RecipientWalletNumber)
	return &t, nil
}

func (s *LedgerStore) TransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := s.db.QueryRow(ctx, "SELECT "+txnColumns+" FROM transactions WHERE reference = $1", reference)
	txn, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrUnknownReference
	}
	return txn, err
}

// DepositByReference returns a deposit scoped to its owner.
func (s *LedgerStore) DepositByReference(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+txnColumns+" FROM transactions WHERE reference = $1 AND user_id = $2 AND kind = 'deposit'",
		reference, userID)
	txn, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrUnknownReference
	}
	return txn, err
}

// TransactionsByUser lists a user's history newest first. Transfers show
// up for both parties; the recipient sees the sender's row.
func (s *LedgerStore) TransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+txnColumns+" FROM transactions WHERE user_id = $1 OR recipient_user_id = $1 ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// ExecTransfer moves amount between the sender's wallet and the wallet
// identified by recipientWalletNumber as one atomic unit. Both wallet
// rows are locked in wallet-number order, so two concurrent transfers
// between the same pair cannot deadlock regardless of direction. The
// balance check happens under the lock; no partial transfer is ever
// observable.
func (s *LedgerStore) ExecTransfer(ctx context.Context, senderUserID, recipientWalletNumber string, amount int64, reference string) (*domain.Transaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var senderWalletID, senderNumber string
	err = tx.QueryRow(ctx,
		"SELECT id, wallet_number FROM wallets WHERE user_id = $1",
		senderUserID,
	).Scan(&senderWalletID, &senderNumber)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	senderNumber = trimChar(senderNumber)

	var recipientWalletID, recipientUserID string
	err = tx.QueryRow(ctx,
		"SELECT id, user_id FROM wallets WHERE wallet_number = $1",
		recipientWalletNumber,
	).Scan(&recipientWalletID, &recipientUserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrRecipientNotFound
		}
		return nil, err
	}

	if senderWalletID == recipientWalletID {
		return nil, domain.ErrSelfTransfer
	}

	// Deterministic lock order by wallet number.
	firstID, secondID := senderWalletID, recipientWalletID
	if senderNumber > recipientWalletNumber {
		firstID, secondID = recipientWalletID, senderWalletID
	}
	for _, id := range []string{firstID, secondID} {
		if _, err := tx.Exec(ctx, "SELECT 1 FROM wallets WHERE id = $1 FOR UPDATE", id); err != nil {
			return nil, fmt.Errorf("lock acquisition failed: %w", err)
		}
	}

	var senderBalance int64
	if err := tx.QueryRow(ctx, "SELECT balance FROM wallets WHERE id = $1", senderWalletID).Scan(&senderBalance); err != nil {
		return nil, err
	}
	if senderBalance < amount {
		return nil, domain.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		"UPDATE wallets SET balance = balance - $1, updated_at = now() WHERE id = $2",
		amount, senderWalletID); err != nil {
		return nil, fmt.Errorf("debit failed: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE wallets SET balance = balance + $1, updated_at = now() WHERE id = $2",
		amount, recipientWalletID); err != nil {
		return nil, fmt.Errorf("credit failed: %w", err)
	}

	txn := &domain.Transaction{
		ID:                    uuid.NewString(),
		UserID:                senderUserID,
		Reference:             reference,
		Kind:                  domain.KindTransfer,
		Amount:                amount,
		Status:                domain.StatusSuccess,
		SenderWalletNumber:    senderNumber,
		RecipientWalletNumber: recipientWalletNumber,
		RecipientUserID:       recipientUserID,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (id, user_id, reference, kind, amount, status, sender_wallet_number, recipient_wallet_number, recipient_user_id)
		 VALUES ($1, $2, $3, 'transfer', $4, 'success', $5, $6, $7)
		 RETURNING created_at, updated_at`,
		txn.ID, txn.UserID, txn.Reference, txn.Amount,
		txn.SenderWalletNumber, txn.RecipientWalletNumber, txn.RecipientUserID,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("transfer insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return txn, nil
}

// FinalizeDeposit drives a verified webhook to a terminal status. The
// idempotency claim, the wallet credit and the status update share one
// transaction: either all persist or none do, so a crash can never leave
// the reference claimed with the balance uncredited.
func (s *LedgerStore) FinalizeDeposit(ctx context.Context, reference string, reportedAmount int64, processorSuccess bool) (FinalizeOutcome, *domain.Transaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Atomic claim: insert-if-absent against the primary key. Exactly
	// one of any number of racing deliveries gets a row in.
	ct, err := tx.Exec(ctx,
		"INSERT INTO processed_webhooks (reference) VALUES ($1) ON CONFLICT (reference) DO NOTHING",
		reference)
	if err != nil {
		return 0, nil, fmt.Errorf("claim failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return FinalizeDuplicate, nil, nil
	}

	row := tx.QueryRow(ctx,
		"SELECT "+txnColumns+" FROM transactions WHERE reference = $1 AND kind = 'deposit' FOR UPDATE",
		reference)
	txn, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		// Rolls the claim back so a later retry can still succeed once
		// the pending row exists.
		return 0, nil, domain.ErrUnknownReference
	}
	if err != nil {
		return 0, nil, err
	}

	if txn.Status.Terminal() {
		return FinalizeDuplicate, txn, nil
	}

	fail := func(reason string) (FinalizeOutcome, *domain.Transaction, error) {
		if err := finalizeStatusTx(ctx, tx, txn, domain.StatusFailed, reportedAmount, reason); err != nil {
			return 0, nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, nil, fmt.Errorf("tx commit failed: %w", err)
		}
		return FinalizeFailed, txn, nil
	}

	if !processorSuccess {
		return fail("processor reported failure")
	}
	if reportedAmount != txn.Amount {
		return fail(fmt.Sprintf("amount mismatch: expected %d, got %d", txn.Amount, reportedAmount))
	}

	ct, err = tx.Exec(ctx,
		"UPDATE wallets SET balance = balance + $1, updated_at = now() WHERE user_id = $2",
		txn.Amount, txn.UserID)
	if err != nil {
		return 0, nil, fmt.Errorf("credit failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return 0, nil, domain.ErrWalletNotFound
	}
	if err := finalizeStatusTx(ctx, tx, txn, domain.StatusSuccess, reportedAmount, ""); err != nil {
		return 0, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return FinalizeCredited, txn, nil
}

// finalizeStatusTx applies the monotonic status transition: only pending
// rows move. The WHERE clause makes concurrent finalizers safe even
// without the row lock above.
func finalizeStatusTx(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, status domain.TransactionStatus, reportedAmount int64, reason string) error {
	ct, err := tx.Exec(ctx,
		`UPDATE transactions SET status = $1, reported_amount = $2, failure_reason = NULLIF($3, ''), updated_at = now()
		 WHERE reference = $4 AND status = 'pending'`,
		status, reportedAmount, reason, txn.Reference)
	if err != nil {
		return fmt.Errorf("status update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrInvalidStateTransition
	}
	txn.Status = status
	txn.ReportedAmount = reportedAmount
	txn.FailureReason = reason
	return nil
}
