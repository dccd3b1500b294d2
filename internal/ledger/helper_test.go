package ledger

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/storage/memory"
)

// fixedNow is a Wednesday; its week starts 2026-03-16 and its month 2026-03-01.
var fixedNow = time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)

var alice = models.Requester{GroupID: "household", UserID: "alice"}

type fixture struct {
	store  *memory.MemoryLedgerStore
	ledger *Ledger
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewMemoryLedgerStore()
	var seq atomic.Int64
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("tx-%d", seq.Add(1)) }),
	}
	f := &fixture{store: store, ledger: NewLedger(store, append(base, opts...)...)}
	require.NoError(t, store.CreateCategory(context.Background(), models.Category{ID: "groceries", GroupID: alice.GroupID, Name: "Groceries"}))
	return f
}

func (f *fixture) account(t *testing.T, id string, balance int64) {
	t.Helper()
	require.NoError(t, f.store.CreateAccount(context.Background(), models.Account{
		ID: id, GroupID: alice.GroupID, Name: id, Balance: balance, OpeningBalance: balance,
	}))
}

func (f *fixture) limit(t *testing.T, accountID string, p models.Period, amount int64) {
	t.Helper()
	require.NoError(t, f.store.PutAccountLimit(context.Background(), models.AccountLimit{
		ID: accountID + "-" + p.String(), AccountID: accountID, Period: p, Limit: amount,
	}))
}

func (f *fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), alice, accountID)
	require.NoError(t, err)
	return b
}

func (f *fixture) count(t *testing.T, accountID string) int {
	t.Helper()
	txs, err := f.ledger.ListTransactions(context.Background(), alice, accountID)
	require.NoError(t, err)
	return len(txs)
}

func (f *fixture) requireConsistent(t *testing.T, accountID string) {
	t.Helper()
	r, err := f.ledger.Reconcile(context.Background(), alice, accountID)
	require.NoError(t, err)
	require.True(t, r.Consistent, "account %s drifted by %d", accountID, r.Drift)
}

func input(accountID string, typ models.TransactionType, amount int64) models.CreateTransactionInput {
	return models.CreateTransactionInput{
		AccountID:  accountID,
		CategoryID: "groceries",
		Amount:     &amount,
		Type:       typ,
	}
}

func ptr[T any](v T) *T { return &v }
