// Package service provides the coin metering, purchase, and admin
// business logic.
package service

import "errors"

// Error taxonomy of the coin ledger core. All of these are terminal
// for the calling operation; none leave partial state behind.
var (
	// ErrInsufficientCoins is recoverable and user-facing; clients
	// respond with a purchase prompt.
	ErrInsufficientCoins = errors.New("insufficient coins")
	// ErrUnknownFeature means the feature has no configured cost.
	ErrUnknownFeature = errors.New("unknown feature")
	// ErrPlanNotFound means the coin purchase plan id is not in the catalog.
	ErrPlanNotFound = errors.New("coin purchase plan not found")
	// ErrPaymentNotCompleted means the provider has not confirmed the
	// session as completed; callers may re-check later.
	ErrPaymentNotCompleted = errors.New("payment not completed")
	// ErrSessionAlreadyRedeemed means this session id has already
	// produced a credit; the balance is never credited twice.
	ErrSessionAlreadyRedeemed = errors.New("checkout session already redeemed")
	// ErrForbidden is returned for admin operations by non-admin
	// callers. It carries no detail about the target.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidAmount rejects non-positive credit amounts.
	ErrInvalidAmount = errors.New("invalid amount: must be positive")
)
