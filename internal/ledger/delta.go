package ledger

import "github.com/sheikh-saqib/household-ledger/internal/models"

// EffectOf is the signed change a transaction of type t and amount makes to
// its account balance. Transfers carry no balance effect.
func EffectOf(t models.TransactionType, amount int64) int64 {
	switch t {
	case models.Income:
		return amount
	case models.Expense:
		return -amount
	case models.Transfer:
		return 0
	default:
		return 0
	}
}

// NetDeltaForUpdate is the balance change of replacing (oldType, oldAmount)
// with (newType, newAmount) on the same account.
func NetDeltaForUpdate(oldType models.TransactionType, oldAmount int64, newType models.TransactionType, newAmount int64) int64 {
	return EffectOf(newType, newAmount) - EffectOf(oldType, oldAmount)
}

// EffectOfDeletion reverses EffectOf.
func EffectOfDeletion(t models.TransactionType, amount int64) int64 {
	return -EffectOf(t, amount)
}

// addChecked returns a+b, or false when the sum does not fit in an int64.
func addChecked(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
