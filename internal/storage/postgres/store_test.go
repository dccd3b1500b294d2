package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/storage"
)

var accountCols = []string{"id", "group_id", "name", "type", "balance", "opening_balance", "note", "created_at", "updated_at"}

var transactionCols = []string{"id", "group_id", "account_id", "category_id", "created_by", "amount", "type", "date",
	"note", "is_highlighted", "recurrence_id", "idempotency_key", "created_at", "updated_at"}

func newMock(t *testing.T) (*PostgresLedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresLedgerStore(db), mock
}

func TestLockAccountSelectsForUpdate(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("acc-1", "g1", "Wallet", "cash", int64(500), int64(0), nil, now, now))
	mock.ExpectExec(`UPDATE accounts SET balance = \$1`).
		WithArgs(int64(400), "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		a, err := uow.LockAccount(ctx, "acc-1")
		if err != nil {
			return err
		}
		return uow.SetBalance(ctx, a.ID, a.Balance-100)
	})
	require.NoError(t, err)
}

func TestLockMissingAccountRollsBack(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		tx := models.Transaction{ID: "t1", GroupID: "g1", AccountID: "gone", CategoryID: "c1", Amount: 10, Type: models.Expense, Date: time.Now()}
		if err := uow.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		_, err := uow.LockAccount(ctx, "gone")
		return err
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetTransactionForUpdate(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM transactions WHERE id = \$1 AND group_id = \$2 FOR UPDATE`).
		WithArgs("t1", "g1").
		WillReturnRows(sqlmock.NewRows(transactionCols).
			AddRow("t1", "g1", "acc-1", "c1", "u1", int64(2500), "income", date, nil, true, nil, nil, date, date))
	mock.ExpectCommit()

	var got models.Transaction
	err := store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		got, err = uow.GetTransactionForUpdate(ctx, "g1", "t1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, models.Income, got.Type)
	assert.Equal(t, int64(2500), got.Amount)
	assert.True(t, got.IsHighlighted)
	assert.Nil(t, got.Note)
}

func TestUniqueViolationIsConflict(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		return uow.InsertTransaction(ctx, models.Transaction{ID: "t1", Type: models.Expense})
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestSerializationFailureOnCommitIsConflict(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})

	err := store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error { return nil })
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestCallbackErrorIsReturnedUnchanged(t *testing.T) {
	store, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithinUnitOfWork(context.Background(), func(uow interfaces.UnitOfWork) error { return boom })
	assert.Same(t, boom, err)
}

func TestDeleteMissingTransaction(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM transactions WHERE id = \$1`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		return uow.DeleteTransaction(ctx, "t1")
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSumExpenses(t *testing.T) {
	store, mock := newMock(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM transactions`).
		WithArgs("acc-1", from, to, "t9").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(600)))

	sum, err := store.SumExpenses(context.Background(), "acc-1", from, to, "t9")
	require.NoError(t, err)
	assert.Equal(t, int64(600), sum)
}

func TestListAccountLimits(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`SELECT id, account_id, period, "limit" FROM account_limits`).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "period", "limit"}).
			AddRow("l1", "acc-1", "month", int64(100000)).
			AddRow("l2", "acc-1", "week", int64(20000)))

	limits, err := store.ListAccountLimits(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, limits, 2)
	assert.Equal(t, models.Monthly, limits[0].Period)
	assert.Equal(t, models.Weekly, limits[1].Period)
}

func TestFindByIdempotencyKeyMiss(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`SELECT .* FROM transactions WHERE group_id = \$1 AND idempotency_key = \$2`).
		WithArgs("g1", "k1").
		WillReturnError(sql.ErrNoRows)

	_, found, err := store.FindByIdempotencyKey(context.Background(), "g1", "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestForeignKeyViolationIsNotFound(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectRollback()

	err := store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		return uow.InsertTransaction(ctx, models.Transaction{ID: "t1", AccountID: "gone", Type: models.Transfer})
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPutAccountLimitRejectsMissingPeriod(t *testing.T) {
	store, _ := newMock(t)

	err := store.PutAccountLimit(context.Background(), models.AccountLimit{ID: "l1", AccountID: "acc-1", Limit: 1000})
	assert.ErrorIs(t, err, storage.ErrInvalid)
}

func TestCheckViolationIsInvalid(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO account_limits`).
		WillReturnError(&pq.Error{Code: "23514", Message: "violates check constraint"})

	err := store.PutAccountLimit(context.Background(), models.AccountLimit{ID: "l1", AccountID: "acc-1", Period: models.Weekly, Limit: 5})
	assert.ErrorIs(t, err, storage.ErrInvalid)
}
