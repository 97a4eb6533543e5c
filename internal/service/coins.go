package service

import (
	"context"
	"fmt"

	"coinledger/internal/model"
	"coinledger/internal/pkg/lock"
)

// CoinService answers balance and transaction history queries. Both
// lazily materialize the account on first contact, so the very first
// read of a fresh account already shows the signup grant and its
// ledger record.
type CoinService struct {
	store       Store
	locks       *lock.AccountLock
	signupGrant int64
}

// NewCoinService creates a new CoinService instance.
func NewCoinService(store Store, locks *lock.AccountLock, signupGrant int64) *CoinService {
	return &CoinService{
		store:       store,
		locks:       locks,
		signupGrant: signupGrant,
	}
}

// ensure materializes the account under its lock and returns it.
func (s *CoinService) ensure(ctx context.Context, principal string) (*model.Account, error) {
	s.locks.Lock(principal)
	defer s.locks.Unlock(principal)

	acct, _, err := s.store.EnsureAccount(ctx, principal, s.signupGrant)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}
	return acct, nil
}

// GetBalance returns the caller's current coin balance.
func (s *CoinService) GetBalance(ctx context.Context, principal string) (int64, error) {
	acct, err := s.ensure(ctx, principal)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// GetTransactionHistory returns the caller's own ledger records, most
// recent first. Cross-account reads go through AdminService.
func (s *CoinService) GetTransactionHistory(ctx context.Context, principal string) ([]*model.TransactionRecord, error) {
	if _, err := s.ensure(ctx, principal); err != nil {
		return nil, err
	}
	records, err := s.store.History(ctx, principal, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return records, nil
}
