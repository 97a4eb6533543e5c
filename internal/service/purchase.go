package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"coinledger/internal/catalog"
	"coinledger/internal/model"
	"coinledger/internal/payment"
	"coinledger/internal/pkg/lock"
	"coinledger/internal/repository"
)

// defaultStatusTimeout bounds the provider status call so a hung
// provider cannot stall purchases indefinitely.
const defaultStatusTimeout = 10 * time.Second

// PurchaseService credits coin balances, either directly from a
// catalog plan or by redeeming a completed checkout session exactly
// once.
type PurchaseService struct {
	store         Store
	locks         *lock.AccountLock
	provider      payment.Provider
	signupGrant   int64
	statusTimeout time.Duration
}

// NewPurchaseService creates a new PurchaseService instance. A zero
// statusTimeout falls back to the default.
func NewPurchaseService(store Store, locks *lock.AccountLock, provider payment.Provider, signupGrant int64, statusTimeout time.Duration) *PurchaseService {
	if statusTimeout <= 0 {
		statusTimeout = defaultStatusTimeout
	}
	return &PurchaseService{
		store:         store,
		locks:         locks,
		provider:      provider,
		signupGrant:   signupGrant,
		statusTimeout: statusTimeout,
	}
}

// credit applies a plan credit inside the account's critical section
// and returns the new balance.
func (s *PurchaseService) credit(ctx context.Context, principal string, plan catalog.Plan, sessionID *string) (int64, error) {
	s.locks.Lock(principal)
	defer s.locks.Unlock(principal)

	if _, _, err := s.store.EnsureAccount(ctx, principal, s.signupGrant); err != nil {
		return 0, fmt.Errorf("failed to ensure account: %w", err)
	}

	rec, err := s.store.ApplyEntry(ctx, principal, plan.CoinAmount, model.TxTypeCredit, plan.Name, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionRedeemed) {
			return 0, ErrSessionAlreadyRedeemed
		}
		return 0, fmt.Errorf("failed to credit purchase: %w", err)
	}

	return rec.BalanceAfter, nil
}

// PurchaseCoins credits the plan's coins directly, without the payment
// provider. This is the bypass/test path; production purchases go
// through PurchaseCoinsWithStripe.
func (s *PurchaseService) PurchaseCoins(ctx context.Context, principal string, planID int64) (int64, error) {
	plan, ok := catalog.GetPlan(planID)
	if !ok {
		return 0, ErrPlanNotFound
	}

	balance, err := s.credit(ctx, principal, plan, nil)
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("principal", principal).
		Int64("plan_id", plan.ID).
		Int64("coins", plan.CoinAmount).
		Int64("balance", balance).
		Msg("Coins purchased")

	return balance, nil
}

// PurchaseCoinsWithStripe redeems a completed checkout session for the
// plan's coins. Each session id credits at most once: retries after a
// success fail with ErrSessionAlreadyRedeemed and never re-credit.
// The provider status call runs outside the account's critical section
// and is bounded by the configured timeout; a provider failure
// surfaces as the retryable payment.ErrUnavailable.
//
// The provider is only consulted for the session's completion state;
// the session-to-plan binding is the caller's claim, vouched for by
// the identity collaborator in front of this service.
func (s *PurchaseService) PurchaseCoinsWithStripe(ctx context.Context, principal, sessionID string, planID int64) (int64, error) {
	plan, ok := catalog.GetPlan(planID)
	if !ok {
		return 0, ErrPlanNotFound
	}

	// Fast pre-check; the unique session constraint inside the store's
	// ApplyEntry closes the remaining race.
	redeemed, err := s.store.SessionRedeemed(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to check session redemption: %w", err)
	}
	if redeemed {
		return 0, ErrSessionAlreadyRedeemed
	}

	statusCtx, cancel := context.WithTimeout(ctx, s.statusTimeout)
	defer cancel()

	status, err := s.provider.SessionStatus(statusCtx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to get session status: %w", err)
	}

	switch status.State {
	case payment.SessionCompleted:
		// Sole state that triggers a credit.
	case payment.SessionOpen, payment.SessionFailed:
		return 0, ErrPaymentNotCompleted
	default:
		return 0, ErrPaymentNotCompleted
	}

	balance, err := s.credit(ctx, principal, plan, &sessionID)
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("principal", principal).
		Str("session_id", sessionID).
		Int64("plan_id", plan.ID).
		Int64("coins", plan.CoinAmount).
		Int64("balance", balance).
		Msg("Checkout session redeemed")

	return balance, nil
}

// CreateCheckoutSession creates a hosted checkout session for a plan.
// The caller is redirected to the returned URL; after completion the
// client redeems the session via PurchaseCoinsWithStripe.
func (s *PurchaseService) CreateCheckoutSession(ctx context.Context, principal string, planID int64, successURL, cancelURL string) (*payment.CheckoutSession, error) {
	plan, ok := catalog.GetPlan(planID)
	if !ok {
		return nil, ErrPlanNotFound
	}

	minorUnits, err := plan.PriceMinorUnits()
	if err != nil {
		return nil, fmt.Errorf("failed to price plan %d: %w", plan.ID, err)
	}

	item := payment.LineItem{
		ProductName:        plan.Name,
		ProductDescription: fmt.Sprintf("%d coins for your account", plan.CoinAmount),
		Quantity:           1,
		PriceMinorUnits:    minorUnits,
		Currency:           plan.CurrencyCode,
	}

	session, err := s.provider.CreateCheckoutSession(ctx, []payment.LineItem{item}, successURL, cancelURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	log.Info().
		Str("principal", principal).
		Str("session_id", session.ID).
		Int64("plan_id", plan.ID).
		Msg("Checkout session created")

	return session, nil
}
