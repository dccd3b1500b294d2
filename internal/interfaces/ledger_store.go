package interfaces

import (
	"context"
	"time"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

// LedgerReader is the read-only side of the store. Reads never take row
// locks.
type LedgerReader interface {
	GetAccount(ctx context.Context, groupID, accountID string) (models.Account, error)
	GetCategory(ctx context.Context, groupID, categoryID string) (models.Category, error)
	GetTransaction(ctx context.Context, groupID, transactionID string) (models.Transaction, error)
	ListTransactions(ctx context.Context, groupID, accountID string) ([]models.Transaction, error)
	ListAccountLimits(ctx context.Context, accountID string) ([]models.AccountLimit, error)
	FindByIdempotencyKey(ctx context.Context, groupID, key string) (models.Transaction, bool, error)
	// SumExpenses adds up expense amounts on accountID dated in [from, to),
	// skipping excludeID when it is non-empty.
	SumExpenses(ctx context.Context, accountID string, from, to time.Time, excludeID string) (int64, error)
}

// UnitOfWork is one database transaction. Everything done through it is
// committed or rolled back together by LedgerStore.WithinUnitOfWork.
type UnitOfWork interface {
	// LockAccount takes the row lock on the account and returns its current
	// state. It blocks while another unit of work holds the same lock.
	LockAccount(ctx context.Context, accountID string) (models.Account, error)
	SetBalance(ctx context.Context, accountID string, balance int64) error

	// GetTransactionForUpdate reads and locks the transaction row.
	GetTransactionForUpdate(ctx context.Context, groupID, transactionID string) (models.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, groupID, key string) (models.Transaction, bool, error)
	InsertTransaction(ctx context.Context, tx models.Transaction) error
	UpdateTransaction(ctx context.Context, tx models.Transaction) error
	DeleteTransaction(ctx context.Context, transactionID string) error
}

type LedgerStore interface {
	LedgerReader

	// WithinUnitOfWork runs fn inside one atomic unit of work. A non-nil
	// error from fn rolls everything back and is returned unchanged.
	WithinUnitOfWork(ctx context.Context, fn func(uow UnitOfWork) error) error

	CreateAccount(ctx context.Context, account models.Account) error
	CreateCategory(ctx context.Context, category models.Category) error
	PutAccountLimit(ctx context.Context, limit models.AccountLimit) error
}
