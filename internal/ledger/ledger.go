package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/models/events"
	"github.com/sheikh-saqib/household-ledger/internal/storage"
)

// Ledger keeps every account balance equal to the net effect of the
// transactions that reference it. All mutations go through here.
type Ledger struct {
	store     interfaces.LedgerStore
	guard     *LimitGuard
	windows   WindowResolver
	publisher interfaces.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Ledger)

func WithWindowResolver(r WindowResolver) Option {
	return func(l *Ledger) { l.windows = r }
}

func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.guard = NewLimitGuard(store, l.windows, l.now)
	return l
}

// AccountChange is the balance movement one mutation caused on one account.
type AccountChange struct {
	AccountID string `json:"account_id"`
	Delta     int64  `json:"delta"`
	Balance   int64  `json:"balance"`
}

// Result is what a committed mutation produced. For deletes Transaction is
// the pre-image.
type Result struct {
	Transaction models.Transaction `json:"transaction"`
	Changes     []AccountChange    `json:"changes,omitempty"`
	Replayed    bool               `json:"replayed,omitempty"`
}

// CreateTransaction validates in, checks the account limits and then inserts
// the row and applies its balance effect in one unit of work.
func (l *Ledger) CreateTransaction(ctx context.Context, req models.Requester, in models.CreateTransactionInput) (Result, error) {
	if err := validateCreate(in); err != nil {
		return Result{}, err
	}
	if in.IdempotencyKey != "" {
		prior, found, err := l.store.FindByIdempotencyKey(ctx, req.GroupID, in.IdempotencyKey)
		if err != nil {
			return Result{}, fmt.Errorf("look up idempotency key: %w", err)
		}
		if found {
			return Result{Transaction: prior, Replayed: true}, nil
		}
	}
	if err := l.checkOwnership(ctx, req.GroupID, in.AccountID, in.CategoryID); err != nil {
		return Result{}, err
	}

	now := l.now().UTC()
	tx := models.Transaction{
		ID:            l.newID(),
		GroupID:       req.GroupID,
		AccountID:     in.AccountID,
		CategoryID:    in.CategoryID,
		CreatedBy:     req.UserID,
		Amount:        *in.Amount,
		Type:          in.Type,
		Date:          now,
		Note:          in.Note,
		IsHighlighted: in.IsHighlighted,
		RecurrenceID:  in.RecurrenceID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Date != nil {
		tx.Date = in.Date.UTC()
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		tx.IdempotencyKey = &key
	}

	check, err := l.guard.Check(ctx, tx, "")
	if err != nil {
		return Result{}, err
	}
	if err := check.Err(); err != nil {
		return Result{}, err
	}

	var res Result
	err = l.store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		if tx.IdempotencyKey != nil {
			prior, found, err := uow.FindByIdempotencyKey(ctx, req.GroupID, *tx.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				res = Result{Transaction: prior, Replayed: true}
				return nil
			}
		}

		if err := uow.InsertTransaction(ctx, tx); err != nil {
			return referenceGone("insert transaction", err)
		}
		changes, err := applyBalanceEffects(ctx, uow, nil, &tx)
		if err != nil {
			return err
		}
		res = Result{Transaction: tx, Changes: changes}
		return nil
	})
	if err != nil {
		return Result{}, classify("create transaction", err)
	}

	if !res.Replayed {
		l.committed(ctx, events.Created, res)
	}
	return res, nil
}

// UpdateTransaction applies patch to transaction id. When the account
// changes, the old effect is withdrawn from the old account and the new one
// applied to the new account, each under its own row lock.
func (l *Ledger) UpdateTransaction(ctx context.Context, req models.Requester, id string, patch models.TransactionPatch) (Result, error) {
	if err := validatePatch(patch); err != nil {
		return Result{}, err
	}
	if patch.Date != nil {
		date := patch.Date.UTC()
		patch.Date = &date
	}

	pre, err := l.store.GetTransaction(ctx, req.GroupID, id)
	if err != nil {
		return Result{}, notFound("transaction", id, err)
	}
	next := patch.Apply(pre)
	var accountID, categoryID string
	if next.AccountID != pre.AccountID {
		accountID = next.AccountID
	}
	if next.CategoryID != pre.CategoryID {
		categoryID = next.CategoryID
	}
	if err := l.checkOwnership(ctx, req.GroupID, accountID, categoryID); err != nil {
		return Result{}, err
	}

	if models.TouchesBalance(pre, next) {
		check, err := l.guard.Check(ctx, next, pre.ID)
		if err != nil {
			return Result{}, err
		}
		if err := check.Err(); err != nil {
			return Result{}, err
		}
	}

	var res Result
	err = l.store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		cur, err := uow.GetTransactionForUpdate(ctx, req.GroupID, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return &ConsistencyError{Op: "reload transaction", Err: &NotFoundError{Entity: "transaction", ID: id}}
			}
			return err
		}
		// The limit check ran against pre; a balance-relevant change since
		// then invalidates it.
		if models.TouchesBalance(pre, cur) {
			return &ConsistencyError{Op: "reload transaction", Err: errors.New("transaction changed concurrently")}
		}

		after := patch.Apply(cur)
		after.UpdatedAt = l.now().UTC()

		var changes []AccountChange
		if models.TouchesBalance(cur, after) {
			changes, err = applyBalanceEffects(ctx, uow, &cur, &after)
			if err != nil {
				return err
			}
		}
		if err := uow.UpdateTransaction(ctx, after); err != nil {
			return referenceGone("update transaction", err)
		}
		res = Result{Transaction: after, Changes: changes}
		return nil
	})
	if err != nil {
		return Result{}, classify("update transaction", err)
	}

	l.committed(ctx, events.Updated, res)
	return res, nil
}

// DeleteTransaction reverses the transaction's balance effect and removes
// the row. The returned Result carries the pre-image.
func (l *Ledger) DeleteTransaction(ctx context.Context, req models.Requester, id string) (Result, error) {
	var res Result
	err := l.store.WithinUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		cur, err := uow.GetTransactionForUpdate(ctx, req.GroupID, id)
		if err != nil {
			return notFound("transaction", id, err)
		}
		changes, err := applyBalanceEffects(ctx, uow, &cur, nil)
		if err != nil {
			return err
		}
		if err := uow.DeleteTransaction(ctx, cur.ID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		res = Result{Transaction: cur, Changes: changes}
		return nil
	})
	if err != nil {
		return Result{}, classify("delete transaction", err)
	}

	l.committed(ctx, events.Deleted, res)
	return res, nil
}

// CheckLimits runs the limit guard for a prospective create without writing.
func (l *Ledger) CheckLimits(ctx context.Context, req models.Requester, in models.CreateTransactionInput) (LimitCheck, error) {
	if err := validateCreate(in); err != nil {
		return LimitCheck{}, err
	}
	if err := l.checkOwnership(ctx, req.GroupID, in.AccountID, ""); err != nil {
		return LimitCheck{}, err
	}
	tx := models.Transaction{AccountID: in.AccountID, Amount: *in.Amount, Type: in.Type, Date: l.now().UTC()}
	if in.Date != nil {
		tx.Date = in.Date.UTC()
	}
	return l.guard.Check(ctx, tx, "")
}

// GetBalance returns the stored balance of an account in the caller's group.
func (l *Ledger) GetBalance(ctx context.Context, req models.Requester, accountID string) (int64, error) {
	account, err := l.store.GetAccount(ctx, req.GroupID, accountID)
	if err != nil {
		return 0, notFound("account", accountID, err)
	}
	return account.Balance, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, req models.Requester, accountID string) ([]models.Transaction, error) {
	if _, err := l.store.GetAccount(ctx, req.GroupID, accountID); err != nil {
		return nil, notFound("account", accountID, err)
	}
	return l.store.ListTransactions(ctx, req.GroupID, accountID)
}

// Reconciliation compares the stored balance with the one implied by the
// account's transactions.
type Reconciliation struct {
	AccountID  string `json:"account_id"`
	Stored     int64  `json:"stored"`
	Computed   int64  `json:"computed"`
	Drift      int64  `json:"drift"`
	Consistent bool   `json:"consistent"`
}

// Reconcile recomputes opening balance plus the effect of every transaction
// on the account. It reads without locking, so concurrent writers may make a
// single result momentarily stale.
func (l *Ledger) Reconcile(ctx context.Context, req models.Requester, accountID string) (Reconciliation, error) {
	account, err := l.store.GetAccount(ctx, req.GroupID, accountID)
	if err != nil {
		return Reconciliation{}, notFound("account", accountID, err)
	}
	txs, err := l.store.ListTransactions(ctx, req.GroupID, accountID)
	if err != nil {
		return Reconciliation{}, err
	}

	computed := account.OpeningBalance
	for _, tx := range txs {
		computed += EffectOf(tx.Type, tx.Amount)
	}
	return Reconciliation{
		AccountID:  accountID,
		Stored:     account.Balance,
		Computed:   computed,
		Drift:      account.Balance - computed,
		Consistent: account.Balance == computed,
	}, nil
}

func (l *Ledger) checkOwnership(ctx context.Context, groupID, accountID, categoryID string) error {
	if accountID != "" {
		if _, err := l.store.GetAccount(ctx, groupID, accountID); err != nil {
			return notFound("account", accountID, err)
		}
	}
	if categoryID != "" {
		if _, err := l.store.GetCategory(ctx, groupID, categoryID); err != nil {
			return notFound("category", categoryID, err)
		}
	}
	return nil
}

// applyBalanceEffects locks every account whose balance moves from before
// to after and writes the new balances. Either side may be nil for creates
// and deletes. Accounts are locked in ascending id order.
func applyBalanceEffects(ctx context.Context, uow interfaces.UnitOfWork, before, after *models.Transaction) ([]AccountChange, error) {
	deltas := make(map[string]int64, 2)
	switch {
	case before != nil && after != nil && before.AccountID == after.AccountID:
		if before.Type.AffectsBalance() || after.Type.AffectsBalance() {
			deltas[after.AccountID] = NetDeltaForUpdate(before.Type, before.Amount, after.Type, after.Amount)
		}
	default:
		if before != nil && before.Type.AffectsBalance() {
			deltas[before.AccountID] = EffectOfDeletion(before.Type, before.Amount)
		}
		if after != nil && after.Type.AffectsBalance() {
			deltas[after.AccountID] = EffectOf(after.Type, after.Amount)
		}
	}

	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}

	var changes []AccountChange
	for _, id := range storage.LockOrder(ids...) {
		account, err := uow.LockAccount(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, &ConsistencyError{Op: "lock account", Err: &NotFoundError{Entity: "account", ID: id}}
			}
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		delta := deltas[id]
		if delta == 0 {
			continue
		}
		balance, ok := addChecked(account.Balance, delta)
		if !ok {
			return nil, &ValidationError{Field: "amount", Reason: fmt.Sprintf("would overflow the balance of account %s", id)}
		}
		if err := uow.SetBalance(ctx, id, balance); err != nil {
			return nil, fmt.Errorf("set balance of %s: %w", id, err)
		}
		changes = append(changes, AccountChange{AccountID: id, Delta: delta, Balance: balance})
	}
	return changes, nil
}

func (l *Ledger) committed(ctx context.Context, action events.Action, res Result) {
	tx := res.Transaction
	l.logger.InfoContext(ctx, "transaction "+string(action),
		"transaction_id", tx.ID,
		"account_id", tx.AccountID,
		"type", tx.Type.String(),
		"amount", tx.Amount,
		"changes", len(res.Changes),
	)
	if l.publisher == nil {
		return
	}

	event := events.TransactionRecorded{
		Action:        action,
		TransactionID: tx.ID,
		GroupID:       tx.GroupID,
		AccountID:     tx.AccountID,
		Type:          tx.Type.String(),
		Amount:        events.MinorUnits(tx.Amount),
		OccurredAt:    l.now().UTC(),
	}
	for _, c := range res.Changes {
		event.Changes = append(event.Changes, events.BalanceChange{
			AccountID: c.AccountID,
			Delta:     events.MinorUnits(c.Delta),
			Balance:   events.MinorUnits(c.Balance),
		})
	}
	if err := l.publisher.Publish(ctx, event.Topic(), tx.AccountID, event); err != nil {
		l.logger.ErrorContext(ctx, "publish ledger event",
			"transaction_id", tx.ID,
			"action", string(action),
			"error", err,
		)
	}
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

// referenceGone reports a write whose account or category was removed after
// the ownership check as a retryable consistency fault.
func referenceGone(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &ConsistencyError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// classify turns storage conflicts that escaped a unit of work into
// retryable consistency errors and leaves domain errors untouched.
func classify(op string, err error) error {
	if errors.Is(err, storage.ErrConflict) && !errors.Is(err, ErrConsistency) {
		return &ConsistencyError{Op: op, Err: err}
	}
	return err
}
