// Package server exposes the coin ledger operations over HTTP. The
// identity collaborator in front of this service authenticates callers
// and forwards the principal and role as trusted headers.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coinledger/internal/service"
)

// Server is the coin ledger HTTP API server.
type Server struct {
	coins          *service.CoinService
	metering       *service.MeteringService
	purchases      *service.PurchaseService
	admin          *service.AdminService
	metricsEnabled bool
	healthCheck    func() error
}

// New creates a new API server.
func New(coins *service.CoinService, metering *service.MeteringService, purchases *service.PurchaseService, admin *service.AdminService) *Server {
	return &Server{
		coins:     coins,
		metering:  metering,
		purchases: purchases,
		admin:     admin,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthCheck sets an optional dependency health probe for /health.
func (s *Server) SetHealthCheck(check func() error) { s.healthCheck = check }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if s.healthCheck != nil {
			if err := s.healthCheck(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/coins", func(r chi.Router) {
		r.Use(identityMiddleware)
		r.Get("/balance", s.handleBalance)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/plans", s.handlePlans)
		r.Post("/charge", s.handleCharge)
		r.Post("/purchase", s.handlePurchase)
		r.Post("/purchase/stripe", s.handlePurchaseStripe)
		r.Post("/checkout", s.handleCheckout)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(identityMiddleware)
		r.Post("/coins", s.handleAdminAddCoins)
		r.Get("/transactions/{principal}", s.handleAdminTransactions)
	})

	return r
}

// writeJSON encodes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
