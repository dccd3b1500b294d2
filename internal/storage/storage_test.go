package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

func TestLockOrder(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, LockOrder("b", "a"))
	assert.Equal(t, []string{"a"}, LockOrder("a", "a"))
	assert.Equal(t, []string{"c"}, LockOrder("", "c"))
	assert.Empty(t, LockOrder())
}

func TestCheckLimit(t *testing.T) {
	assert.NoError(t, CheckLimit(models.AccountLimit{Period: models.Weekly, Limit: 0}))
	assert.ErrorIs(t, CheckLimit(models.AccountLimit{Limit: 1000}), ErrInvalid)
	assert.ErrorIs(t, CheckLimit(models.AccountLimit{Period: models.Monthly, Limit: -1}), ErrInvalid)
}
