// Package model defines the data models for the coin ledger service.
package model

import "time"

// Account is a metered identity holding a coin balance.
// Accounts are created implicitly on first contact with a one-time
// signup grant; the balance is never negative.
type Account struct {
	Principal string    `db:"principal" json:"principal"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// TransactionRecord is an immutable, append-only ledger entry.
// Amount is always the positive magnitude of the balance change; the
// sign is carried by Type. BalanceAfter is the account balance
// immediately following this record, so replaying all records for an
// account in chronological order reconstructs the current balance.
type TransactionRecord struct {
	ID           int64     `db:"id" json:"id"`
	Principal    string    `db:"principal" json:"principal"`
	Feature      string    `db:"feature" json:"feature"`
	Type         string    `db:"type" json:"type"`
	Amount       int64     `db:"amount" json:"amount"`
	BalanceAfter int64     `db:"balance_after" json:"balanceAfter"`
	SessionID    *string   `db:"stripe_session_id" json:"sessionId,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeCredit       = "credit"       // Coin purchase, signup grant, admin reward
	TxTypeDebit        = "debit"        // Generic balance deduction
	TxTypeFeatureUsage = "featureUsage" // Metered feature invocation
)

// Signed returns the signed delta this record applied to the balance.
func (r *TransactionRecord) Signed() int64 {
	if r.Type == TxTypeCredit {
		return r.Amount
	}
	return -r.Amount
}

// Labels for non-usage ledger entries.
const (
	LabelSignupBonus = "Signup Bonus"
	LabelAdminReward = "Admin Reward"
)

// Role is the caller's role as supplied by the identity collaborator.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Identity is the authenticated caller of an operation. The service
// trusts it as already verified by the identity collaborator.
type Identity struct {
	Principal string
	Role      Role
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}
