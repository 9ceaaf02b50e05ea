package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kudiops/walletcore/internal/domain"
)

// memWallet pairs a wallet with its own mutation lock. Balance reads and
// writes go through the lock, mirroring the row lock the Postgres store
// takes, so the ordered-locking transfer path is exercised for real.
type memWallet struct {
	mu sync.Mutex
	w  domain.Wallet
}

// MemStore is an in-process ledger with the same contract as LedgerStore.
// It backs the package tests and local runs without Postgres.
type MemStore struct {
	mu              sync.Mutex
	emails          map[string]bool
	usersByID       map[string]*domain.User
	walletsByUser   map[string]*memWallet
	walletsByNumber map[string]*memWallet
	txns            []*domain.Transaction
	txnByReference  map[string]*domain.Transaction
	claimed         map[string]bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		emails:          make(map[string]bool),
		usersByID:       make(map[string]*domain.User),
		walletsByUser:   make(map[string]*memWallet),
		walletsByNumber: make(map[string]*memWallet),
		txnByReference:  make(map[string]*domain.Transaction),
		claimed:         make(map[string]bool),
	}
}

func (s *MemStore) CreateUserWallet(ctx context.Context, userID, email string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emails[email] || s.walletsByUser[userID] != nil {
		return nil, domain.ErrUserExists
	}
	number := domain.NewWalletNumber()
	for s.walletsByNumber[number] != nil {
		number = domain.NewWalletNumber()
	}

	now := time.Now().UTC()
	mw := &memWallet{w: domain.Wallet{
		ID:           uuid.NewString(),
		UserID:       userID,
		WalletNumber: number,
		CreatedAt:    now,
		UpdatedAt:    now,
	}}
	s.emails[email] = true
	s.usersByID[userID] = &domain.User{ID: userID, Email: email, CreatedAt: now}
	s.walletsByUser[userID] = mw
	s.walletsByNumber[number] = mw
	w := mw.w
	return &w, nil
}

func (s *MemStore) UserByID(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usersByID[userID]
	if u == nil {
		return nil, domain.ErrWalletNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) walletByUser(userID string) *memWallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walletsByUser[userID]
}

func (s *MemStore) WalletByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	mw := s.walletByUser(userID)
	if mw == nil {
		return nil, domain.ErrWalletNotFound
	}
	mw.mu.Lock()
	w := mw.w
	mw.mu.Unlock()
	return &w, nil
}

func (s *MemStore) WalletByNumber(ctx context.Context, walletNumber string) (*domain.Wallet, error) {
	s.mu.Lock()
	mw := s.walletsByNumber[walletNumber]
	s.mu.Unlock()
	if mw == nil {
		return nil, domain.ErrRecipientNotFound
	}
	mw.mu.Lock()
	w := mw.w
	mw.mu.Unlock()
	return &w, nil
}

func (s *MemStore) CreateDeposit(ctx context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txnByReference[txn.Reference] != nil {
		return fmt.Errorf("duplicate reference %q", txn.Reference)
	}
	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	cp := *txn
	s.txns = append(s.txns, &cp)
	s.txnByReference[cp.Reference] = &cp
	return nil
}

func (s *MemStore) SetAuthorizationURL(ctx context.Context, reference, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn := s.txnByReference[reference]; txn != nil {
		txn.AuthorizationURL = url
		txn.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemStore) TransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.txnByReference[reference]
	if txn == nil {
		return nil, domain.ErrUnknownReference
	}
	cp := *txn
	return &cp, nil
}

func (s *MemStore) DepositByReference(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.txnByReference[reference]
	if txn == nil || txn.UserID != userID || txn.Kind != domain.KindDeposit {
		return nil, domain.ErrUnknownReference
	}
	cp := *txn
	return &cp, nil
}

func (s *MemStore) TransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Insertion order is chronological; walk backwards for newest first.
	var out []domain.Transaction
	for i := len(s.txns) - 1; i >= 0; i-- {
		txn := s.txns[i]
		if txn.UserID == userID || txn.RecipientUserID == userID {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (s *MemStore) ExecTransfer(ctx context.Context, senderUserID, recipientWalletNumber string, amount int64, reference string) (*domain.Transaction, error) {
	s.mu.Lock()
	sender := s.walletsByUser[senderUserID]
	recipient := s.walletsByNumber[recipientWalletNumber]
	s.mu.Unlock()

	if sender == nil {
		return nil, domain.ErrWalletNotFound
	}
	if recipient == nil {
		return nil, domain.ErrRecipientNotFound
	}
	if sender == recipient {
		return nil, domain.ErrSelfTransfer
	}

	// Same rule as the Postgres store: lock the smaller wallet number
	// first so opposite-direction transfers cannot deadlock.
	first, second := sender, recipient
	if sender.w.WalletNumber > recipient.w.WalletNumber {
		first, second = recipient, sender
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if sender.w.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}
	now := time.Now().UTC()
	sender.w.Balance -= amount
	sender.w.UpdatedAt = now
	recipient.w.Balance += amount
	recipient.w.UpdatedAt = now

	txn := &domain.Transaction{
		ID:                    uuid.NewString(),
		UserID:                senderUserID,
		Reference:             reference,
		Kind:                  domain.KindTransfer,
		Amount:                amount,
		Status:                domain.StatusSuccess,
		SenderWalletNumber:    sender.w.WalletNumber,
		RecipientWalletNumber: recipient.w.WalletNumber,
		RecipientUserID:       recipient.w.UserID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	s.mu.Lock()
	cp := *txn
	s.txns = append(s.txns, &cp)
	s.txnByReference[cp.Reference] = &cp
	s.mu.Unlock()
	return txn, nil
}

func (s *MemStore) FinalizeDeposit(ctx context.Context, reference string, reportedAmount int64, processorSuccess bool) (FinalizeOutcome, *domain.Transaction, error) {
	s.mu.Lock()
	if s.claimed[reference] {
		s.mu.Unlock()
		return FinalizeDuplicate, nil, nil
	}
	txn := s.txnByReference[reference]
	if txn == nil || txn.Kind != domain.KindDeposit {
		s.mu.Unlock()
		return 0, nil, domain.ErrUnknownReference
	}
	if txn.Status.Terminal() {
		s.mu.Unlock()
		cp := *txn
		return FinalizeDuplicate, &cp, nil
	}
	s.claimed[reference] = true

	now := time.Now().UTC()
	txn.ReportedAmount = reportedAmount
	txn.UpdatedAt = now
	if !processorSuccess || reportedAmount != txn.Amount {
		txn.Status = domain.StatusFailed
		if !processorSuccess {
			txn.FailureReason = "processor reported failure"
		} else {
			txn.FailureReason = fmt.Sprintf("amount mismatch: expected %d, got %d", txn.Amount, reportedAmount)
		}
		cp := *txn
		s.mu.Unlock()
		return FinalizeFailed, &cp, nil
	}

	txn.Status = domain.StatusSuccess
	mw := s.walletsByUser[txn.UserID]
	cp := *txn
	s.mu.Unlock()

	if mw == nil {
		return 0, nil, domain.ErrWalletNotFound
	}
	mw.mu.Lock()
	mw.w.Balance += cp.Amount
	mw.w.UpdatedAt = now
	mw.mu.Unlock()
	return FinalizeCredited, &cp, nil
}
