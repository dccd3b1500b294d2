package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Each domain error returned by the Ledger matches one of these
// with errors.Is; a ConsistencyError wrapping a NotFoundError matches both
// ErrConsistency and ErrNotFound. Anything else is an infrastructure fault.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrLimitExceeded = errors.New("account limit exceeded")
	ErrConsistency   = errors.New("ledger consistency fault")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// LimitExceededError carries one breach per exceeded limit.
type LimitExceededError struct {
	Breaches []LimitBreach
}

func (e *LimitExceededError) Error() string {
	return strings.Join(e.Messages(), "; ")
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

func (e *LimitExceededError) Messages() []string {
	out := make([]string, 0, len(e.Breaches))
	for _, b := range e.Breaches {
		out = append(out, b.Message())
	}
	return out
}

// ConsistencyError aborts a unit of work whose preconditions changed under
// it. Callers may retry.
type ConsistencyError struct {
	Op  string
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConsistencyError) Unwrap() []error { return []error{ErrConsistency, e.Err} }

// IsRetryable reports whether err is a consistency fault worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConsistency)
}
