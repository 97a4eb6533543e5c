package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"coinledger/internal/model"
	"coinledger/internal/pkg/lock"
)

// AdminService holds the privileged operations: direct coin credits
// and cross-account ledger reads. Callers are admins when the identity
// collaborator says so or when listed in the configured admin set.
type AdminService struct {
	store           Store
	locks           *lock.AccountLock
	signupGrant     int64
	adminPrincipals map[string]struct{}
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(store Store, locks *lock.AccountLock, signupGrant int64, adminPrincipals []string) *AdminService {
	admins := make(map[string]struct{}, len(adminPrincipals))
	for _, p := range adminPrincipals {
		admins[p] = struct{}{}
	}
	return &AdminService{
		store:           store,
		locks:           locks,
		signupGrant:     signupGrant,
		adminPrincipals: admins,
	}
}

// IsAdmin reports whether the caller holds the admin role.
func (s *AdminService) IsAdmin(caller model.Identity) bool {
	if caller.IsAdmin() {
		return true
	}
	_, ok := s.adminPrincipals[caller.Principal]
	return ok
}

// AddCoins credits the target account directly, bypassing purchase.
// The credit is ledgered with the distinct "Admin Reward" label so it
// stays distinguishable from purchases in the audit trail. The role
// check runs first so a Forbidden answer leaks nothing about the
// target.
func (s *AdminService) AddCoins(ctx context.Context, caller model.Identity, target string, amount int64) error {
	if !s.IsAdmin(caller) {
		return ErrForbidden
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	s.locks.Lock(target)
	defer s.locks.Unlock(target)

	if _, _, err := s.store.EnsureAccount(ctx, target, s.signupGrant); err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}

	rec, err := s.store.ApplyEntry(ctx, target, amount, model.TxTypeCredit, model.LabelAdminReward, nil)
	if err != nil {
		return fmt.Errorf("failed to credit admin reward: %w", err)
	}

	log.Info().
		Str("admin", caller.Principal).
		Str("target", target).
		Int64("amount", amount).
		Int64("balance", rec.BalanceAfter).
		Msg("Admin reward credited")

	return nil
}

// TransactionHistory returns another account's ledger records, most
// recent first. This is the only cross-account read path.
func (s *AdminService) TransactionHistory(ctx context.Context, caller model.Identity, target string) ([]*model.TransactionRecord, error) {
	if !s.IsAdmin(caller) {
		return nil, ErrForbidden
	}

	records, err := s.store.History(ctx, target, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return records, nil
}
