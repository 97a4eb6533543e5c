// Package main is the entry point for the coin ledger service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"coinledger/internal/config"
	"coinledger/internal/payment"
	"coinledger/internal/pkg/db"
	"coinledger/internal/pkg/lock"
	"coinledger/internal/repository"
	"coinledger/internal/server"
	"coinledger/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select the balance/ledger store
	var (
		store       service.Store
		healthCheck func() error
	)
	switch cfg.Database.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory store; state is lost on restart")
		store = repository.NewMemStore()
	default:
		dbPool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := runMigrations(ctx, dbPool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		store = repository.NewPostgres(dbPool.Pool)
		healthCheck = func() error {
			checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer checkCancel()
			return dbPool.HealthCheck(checkCtx)
		}
	}

	// Payment provider
	if cfg.Stripe.SecretKey == "" {
		log.Warn().Msg("Stripe secret key not configured; checkout purchases will fail")
	}
	provider := payment.NewStripeClient(
		cfg.Stripe.SecretKey,
		payment.WithBaseURL(cfg.Stripe.BaseURL),
		payment.WithAllowedCountries(cfg.Stripe.AllowedCountries),
	)

	// Per-account lock and services
	locks := lock.NewAccountLock()
	grant := cfg.Coins.SignupGrant

	coinService := service.NewCoinService(store, locks, grant)
	meteringService := service.NewMeteringService(store, locks, grant)
	purchaseService := service.NewPurchaseService(store, locks, provider, grant, cfg.Stripe.StatusTimeout)
	adminService := service.NewAdminService(store, locks, grant, cfg.Admin.Principals)

	// HTTP server
	apiServer := server.New(coinService, meteringService, purchaseService, adminService)
	if cfg.Server.MetricsEnabled {
		apiServer.EnableMetrics()
	}
	if healthCheck != nil {
		apiServer.SetHealthCheck(healthCheck)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Coin ledger service starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create accounts table. The CHECK constraint is the
	// store-level backstop for balance non-negativity.
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			principal VARCHAR(255) PRIMARY KEY,
			balance BIGINT NOT NULL CHECK (balance >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: accounts table created")

	// Migration 2: Create transactions table. The partial unique index
	// on stripe_session_id makes session redemption at-most-once.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			principal VARCHAR(255) NOT NULL REFERENCES accounts(principal) ON DELETE CASCADE,
			feature VARCHAR(255) NOT NULL,
			type VARCHAR(50) NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			balance_after BIGINT NOT NULL,
			stripe_session_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_principal_time ON transactions(principal, created_at DESC);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_session ON transactions(stripe_session_id) WHERE stripe_session_id IS NOT NULL;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: transactions table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
