// Package payment integrates the external payment provider. The
// purchase service only ever credits coins for a session the provider
// reports as completed.
package payment

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the provider could not be reached or did
// not answer in time. Callers may retry; no coins were credited.
var ErrUnavailable = errors.New("payment provider unavailable")

// SessionState is the closed set of checkout session outcomes.
type SessionState int

const (
	// SessionOpen means the session exists but payment is not final yet.
	SessionOpen SessionState = iota
	// SessionCompleted means the payment went through; the sole state
	// that triggers a coin credit.
	SessionCompleted
	// SessionFailed means the session expired or the payment failed.
	SessionFailed
)

// String returns the state name for logging.
func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "open"
	case SessionCompleted:
		return "completed"
	case SessionFailed:
		return "failed"
	}
	return "unknown"
}

// SessionStatus is the provider's answer for a checkout session.
type SessionStatus struct {
	State  SessionState
	Detail string
}

// LineItem describes one purchasable entry of a checkout session.
// PriceMinorUnits is in the currency's smallest unit (paise, cents).
type LineItem struct {
	ProductName        string
	ProductDescription string
	Quantity           int64
	PriceMinorUnits    int64
	Currency           string
}

// CheckoutSession is a created hosted-checkout session the client is
// redirected to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Provider is the external payment collaborator.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout session for the
	// given items and redirect URLs.
	CreateCheckoutSession(ctx context.Context, items []LineItem, successURL, cancelURL string) (*CheckoutSession, error)
	// SessionStatus reports the current state of a checkout session.
	SessionStatus(ctx context.Context, sessionID string) (SessionStatus, error)
}
