// Property-based tests for the ledger invariants: the balance never
// goes negative, and the ledger always reconstructs the balance.
package service

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"coinledger/internal/catalog"
	"coinledger/internal/pkg/lock"
	"coinledger/internal/repository"
)

// TestBalanceNeverNegativeProperty: for any sequence of charges and
// purchases, the balance observed after every step is >= 0.
func TestBalanceNeverNegativeProperty(t *testing.T) {
	features := catalog.Features()
	planIDs := make([]int64, 0)
	for _, p := range catalog.Plans() {
		planIDs = append(planIDs, p.ID)
	}

	rapid.Check(t, func(t *rapid.T) {
		store := repository.NewMemStore()
		locks := lock.NewAccountLock()
		grant := rapid.Int64Range(1, 500).Draw(t, "grant")
		metering := NewMeteringService(store, locks, grant)
		coins := NewCoinService(store, locks, grant)
		purchases := NewPurchaseService(store, locks, nil, grant, 0)

		ctx := context.Background()
		principal := fmt.Sprintf("acct-%d", rapid.Int64Range(1, 1000000).Draw(t, "principal"))
		numOps := rapid.IntRange(1, 30).Draw(t, "numOps")

		for i := 0; i < numOps; i++ {
			if rapid.Bool().Draw(t, "charge") {
				feature := rapid.SampledFrom(features).Draw(t, "feature")
				err := metering.ChargeFeatureUsage(ctx, principal, feature)
				if err != nil && err != ErrInsufficientCoins {
					t.Fatalf("unexpected charge error: %v", err)
				}
			} else {
				planID := rapid.SampledFrom(planIDs).Draw(t, "planID")
				if _, err := purchases.PurchaseCoins(ctx, principal, planID); err != nil {
					t.Fatalf("unexpected purchase error: %v", err)
				}
			}

			balance, err := coins.GetBalance(ctx, principal)
			if err != nil {
				t.Fatalf("unexpected balance error: %v", err)
			}
			if balance < 0 {
				t.Fatalf("balance went negative: %d", balance)
			}
		}
	})
}

// TestLedgerReconstructionProperty: after any sequence of operations,
// folding the signed ledger amounts (oldest first) over zero yields the
// current balance, and the newest record's balanceAfter equals it.
func TestLedgerReconstructionProperty(t *testing.T) {
	features := catalog.Features()
	planIDs := make([]int64, 0)
	for _, p := range catalog.Plans() {
		planIDs = append(planIDs, p.ID)
	}

	rapid.Check(t, func(t *rapid.T) {
		store := repository.NewMemStore()
		locks := lock.NewAccountLock()
		grant := rapid.Int64Range(1, 500).Draw(t, "grant")
		metering := NewMeteringService(store, locks, grant)
		coins := NewCoinService(store, locks, grant)
		purchases := NewPurchaseService(store, locks, nil, grant, 0)

		ctx := context.Background()
		principal := fmt.Sprintf("acct-%d", rapid.Int64Range(1, 1000000).Draw(t, "principal"))
		numOps := rapid.IntRange(1, 30).Draw(t, "numOps")

		for i := 0; i < numOps; i++ {
			if rapid.Bool().Draw(t, "charge") {
				feature := rapid.SampledFrom(features).Draw(t, "feature")
				_ = metering.ChargeFeatureUsage(ctx, principal, feature)
			} else {
				planID := rapid.SampledFrom(planIDs).Draw(t, "planID")
				_, _ = purchases.PurchaseCoins(ctx, principal, planID)
			}
		}

		balance, err := coins.GetBalance(ctx, principal)
		if err != nil {
			t.Fatalf("unexpected balance error: %v", err)
		}

		records, err := coins.GetTransactionHistory(ctx, principal)
		if err != nil {
			t.Fatalf("unexpected history error: %v", err)
		}
		if len(records) == 0 {
			t.Fatal("expected at least the signup grant record")
		}

		// History is newest first; fold oldest first
		var reconstructed int64
		for i := len(records) - 1; i >= 0; i-- {
			reconstructed += records[i].Signed()
		}
		if reconstructed != balance {
			t.Fatalf("ledger fold %d does not reconstruct balance %d", reconstructed, balance)
		}

		if records[0].BalanceAfter != balance {
			t.Fatalf("newest record balanceAfter %d != balance %d", records[0].BalanceAfter, balance)
		}

		// Each record's running balanceAfter is internally consistent
		var running int64
		for i := len(records) - 1; i >= 0; i-- {
			running += records[i].Signed()
			if records[i].BalanceAfter != running {
				t.Fatalf("record %d balanceAfter %d != running balance %d", i, records[i].BalanceAfter, running)
			}
		}
	})
}
