package trust

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trust-ledger/internal/money"
)

func openTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteCreateAndGet(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()

	account := testAccount()
	require.NoError(t, store.Create(ctx, account))

	err := store.Create(ctx, account)
	assert.Equal(t, KindConflict, KindOf(err))

	loaded, err := store.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, loaded.ID)
	assert.Equal(t, AccountActive, loaded.Status)
	assert.True(t, loaded.CurrentBalance.IsZero())

	_, err = store.Get(ctx, "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSQLiteUpdateCommitsAtomically(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()
	p := testProcessor(DefaultConfig())

	require.NoError(t, store.Create(ctx, testAccount()))

	updated, err := store.Update(ctx, "acct-1", func(a *TrustAccount) error {
		_, perr := p.Process(a, TransactionRequest{
			Type: TypeDeposit, Amount: money.FromFloat(1200), ClientID: "client-a", MatterReference: "matter-1",
		}, testActor())
		return perr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	loaded, err := store.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "1200.00", loaded.CurrentBalance.String())
	require.Len(t, loaded.Transactions, 1)
	assert.True(t, VerifyChain(loaded).Valid)
}

func TestSQLiteUpdateRollsBackOnScopeError(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()
	p := testProcessor(DefaultConfig())

	require.NoError(t, store.Create(ctx, testAccount()))

	_, err := store.Update(ctx, "acct-1", func(a *TrustAccount) error {
		_, perr := p.Process(a, TransactionRequest{
			Type: TypeWithdrawal, Amount: money.FromFloat(50), ClientID: "client-a", MatterReference: "matter-1",
		}, testActor())
		return perr
	})
	assert.Equal(t, KindInsufficientFunds, KindOf(err))

	loaded, err := store.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, loaded.CurrentBalance.IsZero())
	assert.Empty(t, loaded.Transactions)
	assert.Equal(t, int64(0), loaded.Version)
}

func TestSQLiteUpdateMissingAccount(t *testing.T) {
	store := openTestSQLiteStore(t)

	_, err := store.Update(context.Background(), "missing", func(a *TrustAccount) error { return nil })
	assert.Equal(t, KindNotFound, KindOf(err))
}
