package ledger

import (
	"fmt"
	"math"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

// MaxAmount bounds a single transaction amount in minor units. Any two
// amounts and their difference fit in an int64.
const MaxAmount int64 = math.MaxInt64 / 2

var tooLarge = fmt.Sprintf("must not exceed %d", MaxAmount)

func validateCreate(in models.CreateTransactionInput) error {
	switch {
	case in.Amount == nil:
		return &ValidationError{Field: "amount", Reason: "is required"}
	case *in.Amount < 0:
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	case *in.Amount > MaxAmount:
		return &ValidationError{Field: "amount", Reason: tooLarge}
	case in.CategoryID == "":
		return &ValidationError{Field: "category_id", Reason: "is required"}
	case in.AccountID == "":
		return &ValidationError{Field: "account_id", Reason: "is required"}
	case !in.Type.Valid():
		return &ValidationError{Field: "type", Reason: "must be expense, income or transfer"}
	}
	return nil
}

func validatePatch(p models.TransactionPatch) error {
	switch {
	case p.Amount != nil && *p.Amount < 0:
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	case p.Amount != nil && *p.Amount > MaxAmount:
		return &ValidationError{Field: "amount", Reason: tooLarge}
	case p.Type != nil && !p.Type.Valid():
		return &ValidationError{Field: "type", Reason: "must be expense, income or transfer"}
	case p.AccountID != nil && *p.AccountID == "":
		return &ValidationError{Field: "account_id", Reason: "must not be empty"}
	case p.CategoryID != nil && *p.CategoryID == "":
		return &ValidationError{Field: "category_id", Reason: "must not be empty"}
	}
	return nil
}
