// Package storage holds what the store implementations share.
package storage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to
	// another group.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write lost a race against another unit
	// of work (unique key taken, serialization failure, deadlock victim).
	ErrConflict = errors.New("write conflict")
	// ErrInvalid is returned when a row would violate a schema constraint.
	ErrInvalid = errors.New("invalid record")
)

// CheckLimit rejects limits the window resolvers cannot serve.
func CheckLimit(l models.AccountLimit) error {
	if !l.Period.Valid() {
		return fmt.Errorf("limit period %d: %w", int(l.Period), ErrInvalid)
	}
	if l.Limit < 0 {
		return fmt.Errorf("negative limit %d: %w", l.Limit, ErrInvalid)
	}
	return nil
}

// LockOrder returns the distinct non-empty ids sorted ascending. Row locks
// are always taken in this order so two units of work touching the same
// accounts cannot deadlock.
func LockOrder(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
