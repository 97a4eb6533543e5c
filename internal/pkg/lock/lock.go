// Package lock provides per-account locking for balance operations.
// All balance-mutating sequences (read, validate, mutate, append ledger
// record) must run inside the account's critical section; distinct
// accounts proceed fully in parallel.
package lock

import "sync"

// accountMutex wraps a mutex so instances can be pooled.
type accountMutex struct {
	mu sync.Mutex
}

// AccountLock provides per-account locking to prevent lost-update
// races between concurrent balance operations on the same account.
type AccountLock struct {
	locks sync.Map // map[string]*accountMutex
	pool  sync.Pool
}

// NewAccountLock creates a new AccountLock instance.
func NewAccountLock() *AccountLock {
	return &AccountLock{
		pool: sync.Pool{
			New: func() any {
				return &accountMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given principal.
func (al *AccountLock) getLock(principal string) *accountMutex {
	if v, ok := al.locks.Load(principal); ok {
		return v.(*accountMutex)
	}

	newLock := al.pool.Get().(*accountMutex)
	actual, loaded := al.locks.LoadOrStore(principal, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		al.pool.Put(newLock)
	}
	return actual.(*accountMutex)
}

// Lock acquires the lock for an account.
// This must be called before any balance-modifying operation.
func (al *AccountLock) Lock(principal string) {
	al.getLock(principal).mu.Lock()
}

// Unlock releases the lock for an account.
func (al *AccountLock) Unlock(principal string) {
	if v, ok := al.locks.Load(principal); ok {
		v.(*accountMutex).mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired.
func (al *AccountLock) TryLock(principal string) bool {
	return al.getLock(principal).mu.TryLock()
}

// WithLock executes fn while holding the account's lock.
func (al *AccountLock) WithLock(principal string, fn func() error) error {
	al.Lock(principal)
	defer al.Unlock(principal)
	return fn()
}
