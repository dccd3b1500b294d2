package models

import (
	"fmt"
	"strings"
	"time"
)

// Account holds a running balance in minor currency units.
type Account struct {
	ID             string    `json:"id"`
	GroupID        string    `json:"group_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Balance        int64     `json:"balance"`
	OpeningBalance int64     `json:"opening_balance"` // balance the account was created with
	Note           *string   `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Category is only consulted for ownership checks.
type Category struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Period int

const (
	Weekly Period = iota + 1
	Monthly
)

func (p Period) String() string {
	switch p {
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("Period(%d)", int(p))
	}
}

// Column is the storage spelling of the period.
func (p Period) Column() string {
	switch p {
	case Weekly:
		return "week"
	case Monthly:
		return "month"
	default:
		return ""
	}
}

func (p Period) Valid() bool { return p == Weekly || p == Monthly }

func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "week", "weekly":
		return Weekly, nil
	case "month", "monthly":
		return Monthly, nil
	default:
		return 0, fmt.Errorf("unknown period %q", s)
	}
}

func (p Period) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid period %d", int(p))
	}
	return []byte(p.Column()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// AccountLimit caps expense spend on an account per period.
type AccountLimit struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Period    Period `json:"period"`
	Limit     int64  `json:"limit"`
}

// Requester scopes every call to the caller's group.
type Requester struct {
	GroupID string
	UserID  string
}
