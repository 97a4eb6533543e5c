// Property-based tests for concurrent balance safety under the
// per-account lock.
package lock

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty: for any concurrent balance
// operations on the same account, the final balance equals the result
// of sequential execution of all operations.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expectedFinalBalance := initialBalance
		for i := 0; i < numOps; i++ {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expectedFinalBalance += amounts[i]
		}

		principal := fmt.Sprintf("acct-%d", rapid.Int64Range(1, 1000000).Draw(t, "principal"))

		al := NewAccountLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				al.Lock(principal)
				defer al.Unlock(principal)
				// read-modify-write must not interleave
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expectedFinalBalance {
			t.Fatalf("Balance mismatch with locking: expected %d, got %d (initial=%d, numOps=%d)",
				expectedFinalBalance, balance, initialBalance, numOps)
		}
	})
}

// TestWithLockFunctionProperty tests that WithLock serializes
// operations on the same account.
func TestWithLockFunctionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		amountPerOp := rapid.Int64Range(1, 100).Draw(t, "amountPerOp")

		expectedFinalBalance := initialBalance + int64(numOps)*amountPerOp
		principal := fmt.Sprintf("acct-%d", rapid.Int64Range(1, 1000000).Draw(t, "principal"))

		al := NewAccountLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = al.WithLock(principal, func() error {
					balance += amountPerOp
					return nil
				})
			}()
		}
		wg.Wait()

		if balance != expectedFinalBalance {
			t.Fatalf("Balance mismatch with WithLock: expected %d, got %d",
				expectedFinalBalance, balance)
		}
	})
}

// TestMultipleAccountsIndependentLocksProperty tests that locks for
// different accounts are independent.
func TestMultipleAccountsIndependentLocksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAccounts := rapid.IntRange(2, 10).Draw(t, "numAccounts")
		opsPerAccount := rapid.IntRange(5, 20).Draw(t, "opsPerAccount")

		principals := make([]string, numAccounts)
		balances := make(map[string]*int64, numAccounts)
		expected := make(map[string]int64, numAccounts)
		for i := 0; i < numAccounts; i++ {
			principal := fmt.Sprintf("acct-%d", i+1)
			principals[i] = principal
			initial := rapid.Int64Range(1000, 10000).Draw(t, "initialBalance")
			b := initial
			balances[principal] = &b
			expected[principal] = initial + int64(opsPerAccount)*10
		}

		al := NewAccountLock()

		var wg sync.WaitGroup
		wg.Add(numAccounts * opsPerAccount)
		for _, principal := range principals {
			for j := 0; j < opsPerAccount; j++ {
				go func(p string) {
					defer wg.Done()
					al.Lock(p)
					defer al.Unlock(p)
					*balances[p] += 10
				}(principal)
			}
		}
		wg.Wait()

		for _, principal := range principals {
			if *balances[principal] != expected[principal] {
				t.Fatalf("Account %s balance mismatch: expected %d, got %d",
					principal, expected[principal], *balances[principal])
			}
		}
	})
}

// TestTryLockProperty tests that TryLock never blocks and the lock is
// released cleanly after contention.
func TestTryLockProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		principal := fmt.Sprintf("acct-%d", rapid.Int64Range(1, 1000000).Draw(t, "principal"))
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		al := NewAccountLock()

		var successCount atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		startCh := make(chan struct{})

		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-startCh
				if al.TryLock(principal) {
					successCount.Add(1)
					al.Unlock(principal)
				}
			}()
		}

		close(startCh)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("At least one TryLock should succeed, got %d successes", successCount.Load())
		}

		if !al.TryLock(principal) {
			t.Fatal("Lock should be available after all operations complete")
		}
		al.Unlock(principal)
	})
}

// TestLockUnlockSymmetryProperty tests that every Lock has a
// corresponding Unlock.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		principal := fmt.Sprintf("acct-%d", rapid.Int64Range(1, 1000000).Draw(t, "principal"))
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		al := NewAccountLock()

		for i := 0; i < numCycles; i++ {
			al.Lock(principal)
			al.Unlock(principal)
		}

		if !al.TryLock(principal) {
			t.Fatal("Lock should be available after symmetric lock/unlock cycles")
		}
		al.Unlock(principal)
	})
}
