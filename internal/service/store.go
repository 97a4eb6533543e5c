package service

import (
	"context"

	"coinledger/internal/model"
)

// Store is the balance store and transaction ledger the services
// mutate. Implementations must make EnsureAccount and ApplyEntry
// individually atomic; the services additionally serialize all
// mutations per account through the account lock.
type Store interface {
	// EnsureAccount returns the account, creating it with the one-time
	// signup grant and its credit ledger record if it does not exist.
	// Reports whether the account was newly created.
	EnsureAccount(ctx context.Context, principal string, grant int64) (*model.Account, bool, error)
	// GetAccount retrieves an account by principal.
	GetAccount(ctx context.Context, principal string) (*model.Account, error)
	// ApplyEntry atomically applies a signed balance delta and appends
	// the matching ledger record. A non-nil sessionID is the
	// redemption dedup key: reuse fails with ErrSessionRedeemed.
	ApplyEntry(ctx context.Context, principal string, delta int64, txType, label string, sessionID *string) (*model.TransactionRecord, error)
	// SessionRedeemed reports whether a checkout session id has
	// already produced a credit.
	SessionRedeemed(ctx context.Context, sessionID string) (bool, error)
	// History retrieves an account's ledger records, most recent
	// first. A limit of 0 returns all records.
	History(ctx context.Context, principal string, limit int) ([]*model.TransactionRecord, error)
}
