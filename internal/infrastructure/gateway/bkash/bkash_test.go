package bkash

import (
	"context"
	"regexp"
	"testing"

	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateIssuesPendingTransaction(t *testing.T) {
	g := New()
	got, err := g.Initiate(context.Background(), decimal.RequireFromString("10.00"), "usd", nil)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^bkash_txn_[0-9a-f]{16}$`), got.ExternalID)
	assert.Equal(t, payment.StatusPending, got.Status)
	assert.Empty(t, got.ClientSecret)

	other, err := g.Initiate(context.Background(), decimal.RequireFromString("10.00"), "usd", nil)
	require.NoError(t, err)
	assert.NotEqual(t, got.ExternalID, other.ExternalID)
}

func TestInitiateRejectsNonPositiveAmount(t *testing.T) {
	_, err := New().Initiate(context.Background(), decimal.Zero, "usd", nil)
	assert.ErrorIs(t, err, payment.ErrGateway)
}

func TestConfirmAlwaysSucceedsForOwnTransactions(t *testing.T) {
	g := New()
	init, err := g.Initiate(context.Background(), decimal.NewFromInt(5), "usd", nil)
	require.NoError(t, err)

	status, err := g.Confirm(context.Background(), init.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, status)

	_, err = g.Confirm(context.Background(), "pi_123")
	assert.ErrorIs(t, err, payment.ErrGateway)
}
