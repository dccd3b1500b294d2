package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/storage"
)

// MemoryLedgerStore keeps the ledger in process. Units of work stage their
// writes and apply them on commit; row locks are held until commit or
// rollback, the same way a relational store holds SELECT ... FOR UPDATE
// locks.
type MemoryLedgerStore struct {
	mu           sync.RWMutex // protects the maps below
	accounts     map[string]models.Account
	categories   map[string]models.Category
	limits       map[string][]models.AccountLimit // by account id
	transactions map[string]models.Transaction

	locksMu sync.Mutex
	locks   map[string]chan struct{} // row key -> 1-slot semaphore
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:     make(map[string]models.Account),
		categories:   make(map[string]models.Category),
		limits:       make(map[string][]models.AccountLimit),
		transactions: make(map[string]models.Transaction),
		locks:        make(map[string]chan struct{}),
	}
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.ID]; exists {
		return fmt.Errorf("account %s: %w", account.ID, storage.ErrConflict)
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *MemoryLedgerStore) CreateCategory(ctx context.Context, category models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.categories[category.ID]; exists {
		return fmt.Errorf("category %s: %w", category.ID, storage.ErrConflict)
	}
	m.categories[category.ID] = category
	return nil
}

// PutAccountLimit replaces the account's limit for the same period.
func (m *MemoryLedgerStore) PutAccountLimit(ctx context.Context, limit models.AccountLimit) error {
	if err := storage.CheckLimit(limit); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[limit.AccountID]; !exists {
		return storage.ErrNotFound
	}
	limits := slices.DeleteFunc(m.limits[limit.AccountID], func(l models.AccountLimit) bool {
		return l.Period == limit.Period
	})
	m.limits[limit.AccountID] = append(limits, limit)
	return nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, groupID, accountID string) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountID]
	if !ok || a.GroupID != groupID {
		return models.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (m *MemoryLedgerStore) GetCategory(ctx context.Context, groupID, categoryID string) (models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[categoryID]
	if !ok || c.GroupID != groupID {
		return models.Category{}, storage.ErrNotFound
	}
	return c, nil
}

func (m *MemoryLedgerStore) GetTransaction(ctx context.Context, groupID, transactionID string) (models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transactions[transactionID]
	if !ok || t.GroupID != groupID {
		return models.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

// ListTransactions returns the account's transactions, newest first.
func (m *MemoryLedgerStore) ListTransactions(ctx context.Context, groupID, accountID string) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Transaction
	for _, t := range m.transactions {
		if t.GroupID == groupID && t.AccountID == accountID {
			result = append(result, t)
		}
	}
	slices.SortFunc(result, func(a, b models.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (m *MemoryLedgerStore) ListAccountLimits(ctx context.Context, accountID string) ([]models.AccountLimit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.limits[accountID]), nil
}

func (m *MemoryLedgerStore) FindByIdempotencyKey(ctx context.Context, groupID, key string) (models.Transaction, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.findByKey(groupID, key)
	return t, ok, nil
}

func (m *MemoryLedgerStore) SumExpenses(ctx context.Context, accountID string, from, to time.Time, excludeID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum int64
	for _, t := range m.transactions {
		if t.AccountID != accountID || t.Type != models.Expense || t.ID == excludeID {
			continue
		}
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		sum += t.Amount
	}
	return sum, nil
}

// findByKey expects m.mu to be held.
func (m *MemoryLedgerStore) findByKey(groupID, key string) (models.Transaction, bool) {
	for _, t := range m.transactions {
		if t.GroupID == groupID && t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			return t, true
		}
	}
	return models.Transaction{}, false
}

// WithinUnitOfWork runs fn against a staged view of the store. Staged writes
// become visible to others only when fn returns nil.
func (m *MemoryLedgerStore) WithinUnitOfWork(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) error {
	uow := &unitOfWork{
		store:        m,
		balances:     make(map[string]int64),
		transactions: make(map[string]*models.Transaction),
	}
	defer uow.release()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.commit()
}

// acquire blocks until the row lock for key is free or ctx is done.
func (m *MemoryLedgerStore) acquire(ctx context.Context, key string) (chan struct{}, error) {
	m.locksMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = make(chan struct{}, 1)
		m.locks[key] = l
	}
	m.locksMu.Unlock()

	select {
	case l <- struct{}{}:
		return l, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type unitOfWork struct {
	store        *MemoryLedgerStore
	held         map[string]chan struct{}
	balances     map[string]int64
	transactions map[string]*models.Transaction // nil value = deleted
	done         bool
}

func (u *unitOfWork) lock(ctx context.Context, key string) error {
	if _, ok := u.held[key]; ok {
		return nil
	}
	l, err := u.store.acquire(ctx, key)
	if err != nil {
		return err
	}
	if u.held == nil {
		u.held = make(map[string]chan struct{})
	}
	u.held[key] = l
	return nil
}

func (u *unitOfWork) release() {
	for key, l := range u.held {
		<-l
		delete(u.held, key)
	}
}

func (u *unitOfWork) LockAccount(ctx context.Context, accountID string) (models.Account, error) {
	if err := u.lock(ctx, "account:"+accountID); err != nil {
		return models.Account{}, err
	}

	u.store.mu.RLock()
	a, ok := u.store.accounts[accountID]
	u.store.mu.RUnlock()
	if !ok {
		return models.Account{}, storage.ErrNotFound
	}
	if b, staged := u.balances[accountID]; staged {
		a.Balance = b
	}
	return a, nil
}

func (u *unitOfWork) SetBalance(ctx context.Context, accountID string, balance int64) error {
	if _, ok := u.held["account:"+accountID]; !ok {
		return fmt.Errorf("set balance of %s without holding its lock", accountID)
	}
	u.balances[accountID] = balance
	return nil
}

func (u *unitOfWork) GetTransactionForUpdate(ctx context.Context, groupID, transactionID string) (models.Transaction, error) {
	if err := u.lock(ctx, "transaction:"+transactionID); err != nil {
		return models.Transaction{}, err
	}
	if staged, ok := u.transactions[transactionID]; ok {
		if staged == nil || staged.GroupID != groupID {
			return models.Transaction{}, storage.ErrNotFound
		}
		return *staged, nil
	}
	return u.store.GetTransaction(ctx, groupID, transactionID)
}

func (u *unitOfWork) FindByIdempotencyKey(ctx context.Context, groupID, key string) (models.Transaction, bool, error) {
	// Serializes concurrent creates carrying the same key.
	if err := u.lock(ctx, "idempotency:"+groupID+":"+key); err != nil {
		return models.Transaction{}, false, err
	}
	return u.store.FindByIdempotencyKey(ctx, groupID, key)
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	u.store.mu.RLock()
	_, exists := u.store.transactions[tx.ID]
	u.store.mu.RUnlock()
	if _, staged := u.transactions[tx.ID]; exists || staged {
		return fmt.Errorf("transaction %s: %w", tx.ID, storage.ErrConflict)
	}
	u.transactions[tx.ID] = &tx
	return nil
}

func (u *unitOfWork) UpdateTransaction(ctx context.Context, tx models.Transaction) error {
	if _, ok := u.held["transaction:"+tx.ID]; !ok {
		return fmt.Errorf("update transaction %s without holding its lock", tx.ID)
	}
	u.transactions[tx.ID] = &tx
	return nil
}

func (u *unitOfWork) DeleteTransaction(ctx context.Context, transactionID string) error {
	if _, ok := u.held["transaction:"+transactionID]; !ok {
		return fmt.Errorf("delete transaction %s without holding its lock", transactionID)
	}
	u.transactions[transactionID] = nil
	return nil
}

func (u *unitOfWork) commit() error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}
	u.done = true

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range u.balances {
		if _, ok := s.accounts[id]; !ok {
			return fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
		}
	}
	for id, b := range u.balances {
		a := s.accounts[id]
		a.Balance = b
		a.UpdatedAt = time.Now().UTC()
		s.accounts[id] = a
	}
	for id, t := range u.transactions {
		if t == nil {
			delete(s.transactions, id)
			continue
		}
		s.transactions[id] = *t
	}
	return nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
