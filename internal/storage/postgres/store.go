package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/storage"
)

const transactionColumns = `id, group_id, account_id, category_id, created_by, amount, type, date,
	note, is_highlighted, recurrence_id, idempotency_key, created_at, updated_at`

const accountColumns = `id, group_id, name, type, balance, opening_balance, note, created_at, updated_at`

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects to postgres through lib/pq and checks the connection.
func Open(ctx context.Context, databaseURL string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithinUnitOfWork runs fn in one database transaction. Row locks taken
// through the unit of work are released on commit or rollback.
func (p *PostgresLedgerStore) WithinUnitOfWork(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translate(err)
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = fn(&unitOfWork{tx: dbTx}); err != nil {
		return err
	}
	if err = dbTx.Commit(); err != nil {
		return translate(err)
	}
	return nil
}

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, a models.Account) error {
	const query = `INSERT INTO accounts (id, group_id, name, type, balance, opening_balance, note)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := p.db.ExecContext(ctx, query, a.ID, a.GroupID, a.Name, a.Type, a.Balance, a.OpeningBalance, a.Note)
	return translate(err)
}

func (p *PostgresLedgerStore) CreateCategory(ctx context.Context, c models.Category) error {
	const query = `INSERT INTO categories (id, group_id, name) VALUES ($1,$2,$3)`

	_, err := p.db.ExecContext(ctx, query, c.ID, c.GroupID, c.Name)
	return translate(err)
}

// PutAccountLimit replaces the account's limit for the same period.
func (p *PostgresLedgerStore) PutAccountLimit(ctx context.Context, l models.AccountLimit) error {
	const query = `INSERT INTO account_limits (id, account_id, period, "limit") VALUES ($1,$2,$3,$4)
	ON CONFLICT (account_id, period) DO UPDATE SET "limit" = EXCLUDED."limit"`

	if err := storage.CheckLimit(l); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, query, l.ID, l.AccountID, l.Period.Column(), l.Limit)
	return translate(err)
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, groupID, accountID string) (models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND group_id = $2`

	return scanAccount(p.db.QueryRowContext(ctx, query, accountID, groupID))
}

func (p *PostgresLedgerStore) GetCategory(ctx context.Context, groupID, categoryID string) (models.Category, error) {
	const query = `SELECT id, group_id, name, created_at FROM categories WHERE id = $1 AND group_id = $2`

	var c models.Category
	err := p.db.QueryRowContext(ctx, query, categoryID, groupID).Scan(&c.ID, &c.GroupID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Category{}, storage.ErrNotFound
	}
	return c, err
}

func (p *PostgresLedgerStore) GetTransaction(ctx context.Context, groupID, transactionID string) (models.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND group_id = $2`

	return scanTransaction(p.db.QueryRowContext(ctx, query, transactionID, groupID))
}

func (p *PostgresLedgerStore) ListTransactions(ctx context.Context, groupID, accountID string) ([]models.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions
	WHERE group_id = $1 AND account_id = $2 ORDER BY date DESC, created_at DESC`

	rows, err := p.db.QueryContext(ctx, query, groupID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresLedgerStore) ListAccountLimits(ctx context.Context, accountID string) ([]models.AccountLimit, error) {
	const query = `SELECT id, account_id, period, "limit" FROM account_limits WHERE account_id = $1 ORDER BY period`

	rows, err := p.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var limits []models.AccountLimit
	for rows.Next() {
		var (
			l      models.AccountLimit
			period string
		)
		if err := rows.Scan(&l.ID, &l.AccountID, &period, &l.Limit); err != nil {
			return nil, err
		}
		if l.Period, err = models.ParsePeriod(period); err != nil {
			return nil, err
		}
		limits = append(limits, l)
	}
	return limits, rows.Err()
}

func (p *PostgresLedgerStore) SumExpenses(ctx context.Context, accountID string, from, to time.Time, excludeID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM transactions
	WHERE account_id = $1 AND type = 'expense' AND date >= $2 AND date < $3 AND id <> $4`

	var sum int64
	err := p.db.QueryRowContext(ctx, query, accountID, from, to, excludeID).Scan(&sum)
	return sum, err
}

func (p *PostgresLedgerStore) FindByIdempotencyKey(ctx context.Context, groupID, key string) (models.Transaction, bool, error) {
	return findByIdempotencyKey(ctx, p.db, groupID, key)
}

type unitOfWork struct {
	tx *sql.Tx
}

// LockAccount reads the account row with SELECT ... FOR UPDATE.
func (u *unitOfWork) LockAccount(ctx context.Context, accountID string) (models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	a, err := scanAccount(u.tx.QueryRowContext(ctx, query, accountID))
	return a, translate(err)
}

func (u *unitOfWork) SetBalance(ctx context.Context, accountID string, balance int64) error {
	const query = `UPDATE accounts SET balance = $1, updated_at = now() WHERE id = $2`

	res, err := u.tx.ExecContext(ctx, query, balance, accountID)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func (u *unitOfWork) GetTransactionForUpdate(ctx context.Context, groupID, transactionID string) (models.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND group_id = $2 FOR UPDATE`

	t, err := scanTransaction(u.tx.QueryRowContext(ctx, query, transactionID, groupID))
	return t, translate(err)
}

func (u *unitOfWork) FindByIdempotencyKey(ctx context.Context, groupID, key string) (models.Transaction, bool, error) {
	return findByIdempotencyKey(ctx, u.tx, groupID, key)
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, t models.Transaction) error {
	const query = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := u.tx.ExecContext(ctx, query,
		t.ID, t.GroupID, t.AccountID, t.CategoryID, t.CreatedBy, t.Amount, t.Type.String(), t.Date,
		t.Note, t.IsHighlighted, t.RecurrenceID, t.IdempotencyKey, t.CreatedAt, t.UpdatedAt)
	return translate(err)
}

func (u *unitOfWork) UpdateTransaction(ctx context.Context, t models.Transaction) error {
	const query = `UPDATE transactions SET account_id = $1, category_id = $2, amount = $3, type = $4,
	date = $5, note = $6, is_highlighted = $7, recurrence_id = $8, updated_at = $9
	WHERE id = $10`

	res, err := u.tx.ExecContext(ctx, query,
		t.AccountID, t.CategoryID, t.Amount, t.Type.String(), t.Date, t.Note, t.IsHighlighted, t.RecurrenceID, t.UpdatedAt, t.ID)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func (u *unitOfWork) DeleteTransaction(ctx context.Context, transactionID string) error {
	const query = `DELETE FROM transactions WHERE id = $1`

	res, err := u.tx.ExecContext(ctx, query, transactionID)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func findByIdempotencyKey(ctx context.Context, q queryer, groupID, key string) (models.Transaction, bool, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions WHERE group_id = $1 AND idempotency_key = $2`

	t, err := scanTransaction(q.QueryRowContext(ctx, query, groupID, key))
	if errors.Is(err, storage.ErrNotFound) {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, err
	}
	return t, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.GroupID, &a.Name, &a.Type, &a.Balance, &a.OpeningBalance, &a.Note, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Account{}, storage.ErrNotFound
	}
	return a, err
}

func scanTransaction(row scanner) (models.Transaction, error) {
	var (
		t   models.Transaction
		typ string
	)
	err := row.Scan(&t.ID, &t.GroupID, &t.AccountID, &t.CategoryID, &t.CreatedBy, &t.Amount, &typ, &t.Date,
		&t.Note, &t.IsHighlighted, &t.RecurrenceID, &t.IdempotencyKey, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Transaction{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}
	if t.Type, err = models.ParseTransactionType(typ); err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// translate maps postgres errors onto the storage sentinels: lost races
// become ErrConflict, dangling references ErrNotFound and constraint
// violations ErrInvalid.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "unique_violation", "serialization_failure", "deadlock_detected", "lock_not_available":
		return fmt.Errorf("%s: %w", pqErr.Message, storage.ErrConflict)
	case "foreign_key_violation":
		return fmt.Errorf("%s: %w", pqErr.Message, storage.ErrNotFound)
	case "check_violation", "not_null_violation":
		return fmt.Errorf("%s: %w", pqErr.Message, storage.ErrInvalid)
	default:
		return err
	}
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
