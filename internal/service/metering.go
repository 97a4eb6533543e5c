package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"coinledger/internal/catalog"
	"coinledger/internal/model"
	"coinledger/internal/pkg/lock"
	"coinledger/internal/repository"
)

// MeteringService gates feature access on the account balance. Feature
// collaborators must call ChargeFeatureUsage before doing their own
// paid work; a failed charge means the feature must not run.
type MeteringService struct {
	store       Store
	locks       *lock.AccountLock
	signupGrant int64
}

// NewMeteringService creates a new MeteringService instance.
func NewMeteringService(store Store, locks *lock.AccountLock, signupGrant int64) *MeteringService {
	return &MeteringService{
		store:       store,
		locks:       locks,
		signupGrant: signupGrant,
	}
}

// ChargeFeatureUsage atomically checks the balance against the
// feature's configured cost, debits it, and appends a featureUsage
// ledger record. On failure no mutation occurs and no record is
// written. The whole sequence runs inside the account's critical
// section, so concurrent charges can never drive the balance negative.
func (s *MeteringService) ChargeFeatureUsage(ctx context.Context, principal, featureName string) error {
	cost, ok := catalog.FeatureCost(featureName)
	if !ok {
		return ErrUnknownFeature
	}

	s.locks.Lock(principal)
	defer s.locks.Unlock(principal)

	acct, _, err := s.store.EnsureAccount(ctx, principal, s.signupGrant)
	if err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}

	if acct.Balance < cost {
		return ErrInsufficientCoins
	}

	rec, err := s.store.ApplyEntry(ctx, principal, -cost, model.TxTypeFeatureUsage, featureName, nil)
	if err != nil {
		// The store's own non-negativity guard is the backstop for the
		// balance check above.
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return ErrInsufficientCoins
		}
		return fmt.Errorf("failed to charge feature usage: %w", err)
	}

	log.Debug().
		Str("principal", principal).
		Str("feature", featureName).
		Int64("cost", cost).
		Int64("balance", rec.BalanceAfter).
		Msg("Charged feature usage")

	return nil
}
