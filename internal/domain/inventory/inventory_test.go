package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduct(t *testing.T) {
	p, err := NewProduct("C", "Camera", "CAM-1", decimal.RequireFromString("10.00"), 10)
	require.NoError(t, err)

	require.NoError(t, p.Deduct(4))
	assert.Equal(t, 6, p.Stock)

	err = p.Deduct(7)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Camera")
	assert.Equal(t, 6, p.Stock)

	assert.ErrorIs(t, p.Deduct(0), ErrInvalidQuantity)

	p.Active = false
	assert.ErrorIs(t, p.Deduct(1), ErrInactive)
	assert.Equal(t, 6, p.Stock)
}

func TestNewProductValidation(t *testing.T) {
	_, err := NewProduct("A", "", "", decimal.NewFromInt(-1), 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewProduct("A", "", "", decimal.NewFromInt(1), -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}
