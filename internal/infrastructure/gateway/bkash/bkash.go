// Package bkash is an instant-settlement stand-in for the bKash wallet: every
// initiation is accepted and every confirmation succeeds.
package bkash

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const txnPrefix = "bkash_txn_"

type Gateway struct{}

func New() *Gateway { return &Gateway{} }

func (g *Gateway) Initiate(ctx context.Context, amount decimal.Decimal, _ string, _ map[string]string) (payment.Initiation, error) {
	if err := ctx.Err(); err != nil {
		return payment.Initiation{}, err
	}
	if !amount.IsPositive() {
		return payment.Initiation{}, fmt.Errorf("%w: bkash: amount must be positive", payment.ErrGateway)
	}
	return payment.Initiation{
		ExternalID: txnPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Status:     payment.StatusPending,
	}, nil
}

func (g *Gateway) Confirm(ctx context.Context, externalID string) (payment.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !strings.HasPrefix(externalID, txnPrefix) {
		return "", fmt.Errorf("%w: bkash: unknown transaction %q", payment.ErrGateway, externalID)
	}
	return payment.StatusSuccess, nil
}

var _ payment.Gateway = (*Gateway)(nil)
