package repository

import (
	"context"
	"sync"
	"time"

	"coinledger/internal/model"
)

// MemStore is an in-memory implementation of the balance store and
// ledger, honoring the same contract as Postgres. It backs the
// "memory" database driver for local development and is the substrate
// for service tests.
type MemStore struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	ledger   map[string][]*model.TransactionRecord
	sessions map[string]struct{}
	nextID   int64
	lastTime time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		accounts: make(map[string]*model.Account),
		ledger:   make(map[string][]*model.TransactionRecord),
		sessions: make(map[string]struct{}),
	}
}

// now returns a non-decreasing timestamp for ledger records.
func (s *MemStore) now() time.Time {
	t := time.Now()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = t
	return t
}

// append writes a ledger record under the held mutex.
func (s *MemStore) append(principal, label, txType string, amount, balanceAfter int64, sessionID *string) *model.TransactionRecord {
	s.nextID++
	rec := &model.TransactionRecord{
		ID:           s.nextID,
		Principal:    principal,
		Feature:      label,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		SessionID:    sessionID,
		CreatedAt:    s.now(),
	}
	s.ledger[principal] = append(s.ledger[principal], rec)
	return rec
}

// EnsureAccount returns the account for principal, creating it with
// the one-time signup grant and its credit record if absent.
func (s *MemStore) EnsureAccount(ctx context.Context, principal string, grant int64) (*model.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[principal]; ok {
		copied := *acct
		return &copied, false, nil
	}

	now := s.now()
	acct := &model.Account{
		Principal: principal,
		Balance:   grant,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.accounts[principal] = acct
	s.append(principal, model.LabelSignupBonus, model.TxTypeCredit, grant, grant, nil)

	copied := *acct
	return &copied, true, nil
}

// GetAccount retrieves an account by principal.
func (s *MemStore) GetAccount(ctx context.Context, principal string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[principal]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

// ApplyEntry atomically applies a signed balance delta and appends the
// matching ledger record. A session id that was already used fails
// with ErrSessionRedeemed before any state changes.
func (s *MemStore) ApplyEntry(ctx context.Context, principal string, delta int64, txType, label string, sessionID *string) (*model.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[principal]
	if !ok {
		return nil, ErrAccountNotFound
	}

	if sessionID != nil {
		if _, used := s.sessions[*sessionID]; used {
			return nil, ErrSessionRedeemed
		}
	}

	newBalance := acct.Balance + delta
	if newBalance < 0 {
		return nil, ErrInsufficientBalance
	}

	acct.Balance = newBalance
	acct.UpdatedAt = time.Now()
	if sessionID != nil {
		s.sessions[*sessionID] = struct{}{}
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	rec := s.append(principal, label, txType, amount, newBalance, sessionID)

	copied := *rec
	return &copied, nil
}

// SessionRedeemed reports whether a checkout session id has already
// produced a credit.
func (s *MemStore) SessionRedeemed(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, used := s.sessions[sessionID]
	return used, nil
}

// History retrieves an account's ledger records, most recent first.
// A limit of 0 returns all records.
func (s *MemStore) History(ctx context.Context, principal string, limit int) ([]*model.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.ledger[principal]
	out := make([]*model.TransactionRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		copied := *records[i]
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
