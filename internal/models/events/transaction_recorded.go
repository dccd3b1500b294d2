package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Deleted Action = "deleted"
)

// BalanceChange is the effect a mutation had on one account.
type BalanceChange struct {
	AccountID string          `json:"account_id"`
	Delta     decimal.Decimal `json:"delta"`
	Balance   decimal.Decimal `json:"balance"`
}

// TransactionRecorded is published once a ledger mutation has committed.
type TransactionRecorded struct {
	Action        Action          `json:"action"`
	TransactionID string          `json:"transaction_id"`
	GroupID       string          `json:"group_id"`
	AccountID     string          `json:"account_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Changes       []BalanceChange `json:"changes,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Topic is the suffix the event is routed under.
func (e TransactionRecorded) Topic() string {
	return "transaction." + string(e.Action)
}

// MinorUnits renders an integer amount of cents as a decimal major-unit value.
func MinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
