package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"coinledger/internal/catalog"
	"coinledger/internal/payment"
	"coinledger/internal/service"
)

// handleBalance returns the caller's current coin balance. The first
// contact of a fresh account already reflects the signup grant.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)

	balance, err := s.coins.GetBalance(r.Context(), id.Principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// handleTransactions returns the caller's own ledger, most recent first.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)

	records, err := s.coins.GetTransactionHistory(r.Context(), id.Principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": records})
}

// handlePlans lists the coin purchase plans in stable display order.
func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": catalog.Plans()})
}

type chargeRequest struct {
	Feature string `json:"feature"`
}

// handleCharge debits the caller for one feature invocation.
func (s *Server) handleCharge(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)

	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Feature == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "feature is required"})
		return
	}

	if err := s.metering.ChargeFeatureUsage(r.Context(), id.Principal, req.Feature); err != nil {
		if errors.Is(err, service.ErrInsufficientCoins) {
			insufficientTotal.Inc()
		}
		writeError(w, err)
		return
	}

	chargesTotal.WithLabelValues(req.Feature).Inc()
	w.WriteHeader(http.StatusNoContent)
}

type purchaseRequest struct {
	PlanID    int64  `json:"planId"`
	SessionID string `json:"sessionId,omitempty"`
}

// handlePurchase credits a plan directly (bypass/test path).
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	balance, err := s.purchases.PurchaseCoins(r.Context(), id.Principal, req.PlanID)
	if err != nil {
		writeError(w, err)
		return
	}

	purchasesTotal.WithLabelValues("direct").Inc()
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// handlePurchaseStripe redeems a completed checkout session, at most
// once per session id.
func (s *Server) handlePurchaseStripe(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId is required"})
		return
	}

	balance, err := s.purchases.PurchaseCoinsWithStripe(r.Context(), id.Principal, req.SessionID, req.PlanID)
	if err != nil {
		writeError(w, err)
		return
	}

	purchasesTotal.WithLabelValues("stripe").Inc()
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

type checkoutRequest struct {
	PlanID     int64  `json:"planId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// handleCheckout creates a hosted checkout session for a plan.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SuccessURL == "" || req.CancelURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "planId, successUrl and cancelUrl are required"})
		return
	}

	session, err := s.purchases.CreateCheckoutSession(r.Context(), id.Principal, req.PlanID, req.SuccessURL, req.CancelURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

type adminAddCoinsRequest struct {
	Principal string `json:"principal"`
	Amount    int64  `json:"amount"`
}

// handleAdminAddCoins credits a target account directly (admin only).
func (s *Server) handleAdminAddCoins(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)

	var req adminAddCoinsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Principal == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "principal is required"})
		return
	}

	if err := s.admin.AddCoins(r.Context(), id, req.Principal, req.Amount); err != nil {
		writeError(w, err)
		return
	}

	purchasesTotal.WithLabelValues("admin").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminTransactions returns another account's ledger (admin only).
func (s *Server) handleAdminTransactions(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	target := chi.URLParam(r, "principal")

	records, err := s.admin.TransactionHistory(r.Context(), id, target)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": records})
}

// writeError maps the service error taxonomy onto HTTP statuses.
// Recoverable conditions carry their message; everything else is a
// generic failure so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientCoins):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error": "Insufficient coins. Please purchase more coins to continue using this feature.",
		})
	case errors.Is(err, service.ErrUnknownFeature),
		errors.Is(err, service.ErrPlanNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, service.ErrPaymentNotCompleted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Payment not completed. Please retry once the payment finishes."})
	case errors.Is(err, service.ErrSessionAlreadyRedeemed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "This payment session has already been redeemed."})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, service.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, payment.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Payment provider unavailable. Please retry."})
	default:
		log.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
