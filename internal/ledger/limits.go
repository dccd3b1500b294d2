package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

// LimitReader is what the guard needs from the store.
type LimitReader interface {
	ListAccountLimits(ctx context.Context, accountID string) ([]models.AccountLimit, error)
	SumExpenses(ctx context.Context, accountID string, from, to time.Time, excludeID string) (int64, error)
}

// LimitBreach describes one limit a mutation would push over.
type LimitBreach struct {
	Limit           models.AccountLimit `json:"limit"`
	CurrentSpent    int64               `json:"current_spent"`
	RemainingAmount int64               `json:"remaining_amount"`
}

// Message names the period, the limit, what is already spent and what is
// left, with amounts in major units.
func (b LimitBreach) Message() string {
	return fmt.Sprintf("%s limit of %s exceeded: current spent %s, remaining %s",
		b.Limit.Period, formatMinor(b.Limit.Limit), formatMinor(b.CurrentSpent), formatMinor(b.RemainingAmount))
}

// LimitCheck is the guard's verdict.
type LimitCheck struct {
	IsValid  bool          `json:"is_valid"`
	Exceeded []LimitBreach `json:"exceeded,omitempty"`
}

// Err turns a failed check into a *LimitExceededError.
func (c LimitCheck) Err() error {
	if c.IsValid {
		return nil
	}
	return &LimitExceededError{Breaches: c.Exceeded}
}

// LimitGuard checks prospective transactions against the account's limits.
// It only reads.
type LimitGuard struct {
	reader  LimitReader
	windows WindowResolver
	now     func() time.Time
}

func NewLimitGuard(reader LimitReader, windows WindowResolver, now func() time.Time) *LimitGuard {
	if windows == nil {
		windows = CalendarWindows{Location: time.UTC, WeekStart: time.Monday}
	}
	if now == nil {
		now = time.Now
	}
	return &LimitGuard{reader: reader, windows: windows, now: now}
}

// Check evaluates every limit on next.AccountID as if next were on the books.
// excludeID removes the row being edited from the recorded spend so its old
// amount is not counted twice.
func (g *LimitGuard) Check(ctx context.Context, next models.Transaction, excludeID string) (LimitCheck, error) {
	if next.Type != models.Expense || next.Amount == 0 {
		return LimitCheck{IsValid: true}, nil
	}

	limits, err := g.reader.ListAccountLimits(ctx, next.AccountID)
	if err != nil {
		return LimitCheck{}, fmt.Errorf("list account limits: %w", err)
	}

	now := g.now()
	check := LimitCheck{IsValid: true}
	for _, limit := range limits {
		window, err := g.windows.Window(limit.Period, now)
		if err != nil {
			return LimitCheck{}, err
		}
		if !window.Contains(next.Date) {
			continue
		}

		spent, err := g.reader.SumExpenses(ctx, next.AccountID, window.Start, window.End, excludeID)
		if err != nil {
			return LimitCheck{}, fmt.Errorf("sum expenses for %s limit: %w", limit.Period, err)
		}
		// An overflowing total is over any limit.
		if total, ok := addChecked(spent, next.Amount); ok && total <= limit.Limit {
			continue
		}

		check.IsValid = false
		check.Exceeded = append(check.Exceeded, LimitBreach{
			Limit:           limit,
			CurrentSpent:    spent,
			RemainingAmount: max(limit.Limit-spent, 0),
		})
	}
	return check, nil
}

func formatMinor(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
