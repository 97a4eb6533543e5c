// Package repository provides the balance store and transaction ledger
// persistence layer.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"coinledger/internal/model"
)

// Common errors for store operations.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSessionRedeemed     = errors.New("checkout session already redeemed")
)

// pgUniqueViolation is the Postgres error code for unique_violation.
const pgUniqueViolation = "23505"

// Postgres persists accounts and the ledger in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureAccount returns the account for principal, creating it with the
// one-time signup grant (and its credit ledger record) if it does not
// exist yet. The insert-or-get is race-safe: concurrent first contacts
// produce exactly one account and one grant record.
func (s *Postgres) EnsureAccount(ctx context.Context, principal string, grant int64) (*model.Account, bool, error) {
	const insert = `
		INSERT INTO accounts (principal, balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (principal) DO NOTHING
		RETURNING principal, balance, created_at, updated_at
	`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var acct model.Account
	err = tx.QueryRow(ctx, insert, principal, grant).Scan(
		&acct.Principal, &acct.Balance, &acct.CreatedAt, &acct.UpdatedAt,
	)
	switch {
	case err == nil:
		// Fresh account: append the signup grant record in the same
		// transaction so balance and ledger can never disagree.
		const record = `
			INSERT INTO transactions (principal, feature, type, amount, balance_after, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`
		if _, err := tx.Exec(ctx, record, principal, model.LabelSignupBonus, model.TxTypeCredit, grant, grant); err != nil {
			return nil, false, fmt.Errorf("failed to record signup grant: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit account creation: %w", err)
		}
		return &acct, true, nil

	case errors.Is(err, pgx.ErrNoRows):
		// Account already exists (possibly created by a concurrent call).
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		acctPtr, err := s.GetAccount(ctx, principal)
		if err != nil {
			return nil, false, err
		}
		return acctPtr, false, nil

	default:
		return nil, false, fmt.Errorf("failed to ensure account: %w", err)
	}
}

// GetAccount retrieves an account by principal.
// Returns ErrAccountNotFound if it does not exist.
func (s *Postgres) GetAccount(ctx context.Context, principal string) (*model.Account, error) {
	const query = `
		SELECT principal, balance, created_at, updated_at
		FROM accounts
		WHERE principal = $1
	`

	var acct model.Account
	err := s.pool.QueryRow(ctx, query, principal).Scan(
		&acct.Principal, &acct.Balance, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acct, nil
}

// ApplyEntry atomically applies a signed balance delta and appends the
// matching ledger record, in one database transaction. The row lock on
// the account serializes the read-validate-mutate-append sequence; the
// unique index on stripe_session_id rejects a second credit for the
// same session with ErrSessionRedeemed.
func (s *Postgres) ApplyEntry(ctx context.Context, principal string, delta int64, txType, label string, sessionID *string) (*model.TransactionRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE principal = $1 FOR UPDATE`, principal).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	newBalance := balance + delta
	if newBalance < 0 {
		return nil, ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = NOW() WHERE principal = $1`,
		principal, newBalance,
	); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}

	const record = `
		INSERT INTO transactions (principal, feature, type, amount, balance_after, stripe_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, principal, feature, type, amount, balance_after, stripe_session_id, created_at
	`

	var rec model.TransactionRecord
	err = tx.QueryRow(ctx, record, principal, label, txType, amount, newBalance, sessionID).Scan(
		&rec.ID, &rec.Principal, &rec.Feature, &rec.Type,
		&rec.Amount, &rec.BalanceAfter, &rec.SessionID, &rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrSessionRedeemed
		}
		return nil, fmt.Errorf("failed to append ledger record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ledger entry: %w", err)
	}

	return &rec, nil
}

// SessionRedeemed reports whether a checkout session id has already
// produced a credit. The unique index inside ApplyEntry remains the
// authoritative guard; this is a fast pre-check.
func (s *Postgres) SessionRedeemed(ctx context.Context, sessionID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM transactions WHERE stripe_session_id = $1)`

	var redeemed bool
	if err := s.pool.QueryRow(ctx, query, sessionID).Scan(&redeemed); err != nil {
		return false, fmt.Errorf("failed to check session redemption: %w", err)
	}
	return redeemed, nil
}

// History retrieves an account's ledger records, most recent first.
// A limit of 0 returns all records.
func (s *Postgres) History(ctx context.Context, principal string, limit int) ([]*model.TransactionRecord, error) {
	query := `
		SELECT id, principal, feature, type, amount, balance_after, stripe_session_id, created_at
		FROM transactions
		WHERE principal = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []any{principal}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var records []*model.TransactionRecord
	for rows.Next() {
		var rec model.TransactionRecord
		err := rows.Scan(
			&rec.ID, &rec.Principal, &rec.Feature, &rec.Type,
			&rec.Amount, &rec.BalanceAfter, &rec.SessionID, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return records, nil
}
