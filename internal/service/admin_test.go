package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinledger/internal/model"
	"coinledger/internal/pkg/lock"
	"coinledger/internal/repository"
)

func newAdminService(adminPrincipals []string) (*AdminService, *repository.MemStore) {
	store := repository.NewMemStore()
	return NewAdminService(store, lock.NewAccountLock(), testSignupGrant, adminPrincipals), store
}

func TestAddCoins(t *testing.T) {
	svc, store := newAdminService(nil)
	ctx := context.Background()

	admin := model.Identity{Principal: "admin-1", Role: model.RoleAdmin}
	err := svc.AddCoins(ctx, admin, "user-1", 1000)
	require.NoError(t, err)

	acct, err := store.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(testSignupGrant+1000), acct.Balance)

	// Ledgered as a credit with the admin label, not a purchase
	records, err := store.History(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.TxTypeCredit, records[0].Type)
	assert.Equal(t, model.LabelAdminReward, records[0].Feature)
	assert.Equal(t, int64(1000), records[0].Amount)
}

func TestAddCoins_NonAdminForbidden(t *testing.T) {
	svc, store := newAdminService(nil)
	ctx := context.Background()

	for _, role := range []model.Role{model.RoleUser, model.RoleGuest} {
		caller := model.Identity{Principal: "user-2", Role: role}
		err := svc.AddCoins(ctx, caller, "user-1", 1000)
		assert.ErrorIs(t, err, ErrForbidden)
	}

	// Forbidden before any state change: the target was never created
	_, err := store.GetAccount(ctx, "user-1")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestAddCoins_ConfiguredAdminPrincipal(t *testing.T) {
	svc, store := newAdminService([]string{"ops-1"})
	ctx := context.Background()

	// Listed principal is an admin even with a plain user role
	caller := model.Identity{Principal: "ops-1", Role: model.RoleUser}
	err := svc.AddCoins(ctx, caller, "user-1", 50)
	require.NoError(t, err)

	acct, err := store.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(testSignupGrant+50), acct.Balance)
}

func TestAddCoins_InvalidAmount(t *testing.T) {
	svc, store := newAdminService(nil)
	ctx := context.Background()

	admin := model.Identity{Principal: "admin-1", Role: model.RoleAdmin}
	for _, amount := range []int64{0, -10} {
		err := svc.AddCoins(ctx, admin, "user-1", amount)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	_, err := store.GetAccount(ctx, "user-1")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestTransactionHistory_CrossAccountRead(t *testing.T) {
	svc, store := newAdminService(nil)
	ctx := context.Background()

	_, _, err := store.EnsureAccount(ctx, "user-1", testSignupGrant)
	require.NoError(t, err)
	_, err = store.ApplyEntry(ctx, "user-1", -20, model.TxTypeFeatureUsage, "processChatMessage", nil)
	require.NoError(t, err)

	admin := model.Identity{Principal: "admin-1", Role: model.RoleAdmin}
	records, err := svc.TransactionHistory(ctx, admin, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "processChatMessage", records[0].Feature)
}

func TestTransactionHistory_NonAdminForbidden(t *testing.T) {
	svc, _ := newAdminService(nil)

	caller := model.Identity{Principal: "user-2", Role: model.RoleUser}
	_, err := svc.TransactionHistory(context.Background(), caller, "user-1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestIsAdmin(t *testing.T) {
	svc, _ := newAdminService([]string{"ops-1"})

	assert.True(t, svc.IsAdmin(model.Identity{Principal: "x", Role: model.RoleAdmin}))
	assert.True(t, svc.IsAdmin(model.Identity{Principal: "ops-1", Role: model.RoleUser}))
	assert.False(t, svc.IsAdmin(model.Identity{Principal: "user-1", Role: model.RoleUser}))
	assert.False(t, svc.IsAdmin(model.Identity{Principal: "guest", Role: model.RoleGuest}))
}
