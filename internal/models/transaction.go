package models

import (
	"fmt"
	"strings"
	"time"
)

// TransactionType is the closed set of ledger movement kinds.
type TransactionType int

const (
	Expense TransactionType = iota + 1
	Income
	Transfer
)

func (t TransactionType) String() string {
	switch t {
	case Expense:
		return "expense"
	case Income:
		return "income"
	case Transfer:
		return "transfer"
	default:
		return fmt.Sprintf("TransactionType(%d)", int(t))
	}
}

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	return t == Expense || t == Income || t == Transfer
}

// AffectsBalance is false only for transfers.
func (t TransactionType) AffectsBalance() bool {
	return t == Expense || t == Income
}

func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense":
		return Expense, nil
	case "income":
		return Income, nil
	case "transfer":
		return Transfer, nil
	default:
		return 0, fmt.Errorf("unknown transaction type %q", s)
	}
}

func (t TransactionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid transaction type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *TransactionType) UnmarshalText(b []byte) error {
	parsed, err := ParseTransactionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Transaction is one ledger row. Amount is in minor currency units and is
// never negative; the sign comes from Type.
type Transaction struct {
	ID             string          `json:"id"`
	GroupID        string          `json:"group_id"`
	AccountID      string          `json:"account_id"`
	CategoryID     string          `json:"category_id"`
	CreatedBy      string          `json:"created_by"`
	Amount         int64           `json:"amount"`
	Type           TransactionType `json:"type"`
	Date           time.Time       `json:"date"`
	Note           *string         `json:"note,omitempty"`
	IsHighlighted  bool            `json:"is_highlighted"`
	RecurrenceID   *string         `json:"recurrence_id,omitempty"`
	IdempotencyKey *string         `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreateTransactionInput is the payload accepted by the engine for a new
// transaction. Amount is a pointer so a missing amount can be told apart
// from an explicit zero.
type CreateTransactionInput struct {
	AccountID      string          `json:"account_id"`
	CategoryID     string          `json:"category_id"`
	Amount         *int64          `json:"amount"`
	Type           TransactionType `json:"type"`
	Date           *time.Time      `json:"date,omitempty"`
	Note           *string         `json:"note,omitempty"`
	IsHighlighted  bool            `json:"is_highlighted"`
	RecurrenceID   *string         `json:"recurrence_id,omitempty"`
	IdempotencyKey string          `json:"-"`
}

// TransactionPatch carries the fields to change on an existing transaction.
// Nil fields are left untouched.
type TransactionPatch struct {
	AccountID     *string          `json:"account_id,omitempty"`
	CategoryID    *string          `json:"category_id,omitempty"`
	Amount        *int64           `json:"amount,omitempty"`
	Type          *TransactionType `json:"type,omitempty"`
	Date          *time.Time       `json:"date,omitempty"`
	Note          *string          `json:"note,omitempty"`
	IsHighlighted *bool            `json:"is_highlighted,omitempty"`
	RecurrenceID  *string          `json:"recurrence_id,omitempty"`
}

// Apply returns a copy of t with the patch applied.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	out := t
	if p.AccountID != nil {
		out.AccountID = *p.AccountID
	}
	if p.CategoryID != nil {
		out.CategoryID = *p.CategoryID
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Note != nil {
		out.Note = p.Note
	}
	if p.IsHighlighted != nil {
		out.IsHighlighted = *p.IsHighlighted
	}
	if p.RecurrenceID != nil {
		out.RecurrenceID = p.RecurrenceID
	}
	return out
}

// TouchesBalance reports whether moving from before to after can change any
// account balance or the limit window the row counts against.
func TouchesBalance(before, after Transaction) bool {
	return before.AccountID != after.AccountID ||
		before.Amount != after.Amount ||
		before.Type != after.Type ||
		!before.Date.Equal(after.Date)
}
