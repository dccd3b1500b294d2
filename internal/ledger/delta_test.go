package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

func TestEffectOf(t *testing.T) {
	tests := []struct {
		name   string
		typ    models.TransactionType
		amount int64
		want   int64
	}{
		{name: "income credits", typ: models.Income, amount: 2500, want: 2500},
		{name: "expense debits", typ: models.Expense, amount: 2500, want: -2500},
		{name: "transfer is a no-op", typ: models.Transfer, amount: 2500, want: 0},
		{name: "zero amount", typ: models.Expense, amount: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EffectOf(tt.typ, tt.amount))
			assert.Equal(t, -tt.want, EffectOfDeletion(tt.typ, tt.amount))
		})
	}
}

func TestNetDeltaForUpdate(t *testing.T) {
	tests := []struct {
		name               string
		oldType, newType   models.TransactionType
		oldAmount, newAmnt int64
		want               int64
	}{
		{name: "amount only", oldType: models.Income, oldAmount: 25000, newType: models.Income, newAmnt: 15000, want: -10000},
		{name: "expense to income doubles", oldType: models.Expense, oldAmount: 100, newType: models.Income, newAmnt: 100, want: 200},
		{name: "income to expense", oldType: models.Income, oldAmount: 100, newType: models.Expense, newAmnt: 100, want: -200},
		{name: "type and amount", oldType: models.Expense, oldAmount: 50, newType: models.Income, newAmnt: 80, want: 130},
		{name: "into transfer reverses", oldType: models.Expense, oldAmount: 70, newType: models.Transfer, newAmnt: 70, want: 70},
		{name: "out of transfer applies", oldType: models.Transfer, oldAmount: 70, newType: models.Income, newAmnt: 70, want: 70},
		{name: "transfer to transfer", oldType: models.Transfer, oldAmount: 70, newType: models.Transfer, newAmnt: 900, want: 0},
		{name: "unchanged", oldType: models.Expense, oldAmount: 70, newType: models.Expense, newAmnt: 70, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NetDeltaForUpdate(tt.oldType, tt.oldAmount, tt.newType, tt.newAmnt))
		})
	}
}

func TestAddChecked(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want int64
		ok   bool
	}{
		{name: "plain", a: 5, b: -7, want: -2, ok: true},
		{name: "up to max", a: math.MaxInt64 - 1, b: 1, want: math.MaxInt64, ok: true},
		{name: "past max", a: math.MaxInt64, b: 1, ok: false},
		{name: "past min", a: math.MinInt64, b: -1, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := addChecked(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
