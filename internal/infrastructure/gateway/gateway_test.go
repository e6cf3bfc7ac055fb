package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	calls int
	err   error
}

func (f *fakeGateway) Initiate(context.Context, decimal.Decimal, string, map[string]string) (payment.Initiation, error) {
	f.calls++
	if f.err != nil {
		return payment.Initiation{}, f.err
	}
	return payment.Initiation{ExternalID: "ext-1", Status: payment.StatusPending}, nil
}

func (f *fakeGateway) Confirm(context.Context, string) (payment.Status, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return payment.StatusSuccess, nil
}

type declined struct{}

func (declined) Error() string     { return "declined" }
func (declined) ClientError() bool { return true }

func TestRegistryResolvesEnabledProviders(t *testing.T) {
	g := &fakeGateway{}
	r := NewRegistry().Register(payment.ProviderBkash, g)

	got, err := r.Gateway(payment.ProviderBkash)
	require.NoError(t, err)
	assert.Same(t, g, got)

	_, err = r.Gateway(payment.ProviderStripe)
	assert.ErrorIs(t, err, payment.ErrUnsupportedProvider)
	assert.Equal(t, []payment.Provider{payment.ProviderBkash}, r.Providers())
}

func testSettings() BreakerSettings {
	return BreakerSettings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 2, FailureRate: 0.5}
}

func TestBreakerOpensAfterOutages(t *testing.T) {
	next := &fakeGateway{err: errors.New("connection refused")}
	b := WithBreaker(payment.ProviderStripe, next, testSettings(), nil)

	for i := 0; i < 2; i++ {
		_, err := b.Confirm(context.Background(), "ext-1")
		assert.ErrorIs(t, err, payment.ErrGateway)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Initiate(context.Background(), decimal.NewFromInt(1), "usd", nil)
	assert.ErrorIs(t, err, payment.ErrGateway)
	assert.Equal(t, 2, next.calls, "open circuit must not reach the provider")
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	next := &fakeGateway{err: declined{}}
	b := WithBreaker(payment.ProviderStripe, next, testSettings(), nil)

	for i := 0; i < 5; i++ {
		_, err := b.Confirm(context.Background(), "ext-1")
		assert.ErrorIs(t, err, payment.ErrGateway)
		var ce ClientError
		assert.ErrorAs(t, err, &ce)
	}
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, 5, next.calls)
}

func TestBreakerPassesResults(t *testing.T) {
	b := WithBreaker(payment.ProviderBkash, &fakeGateway{}, DefaultBreakerSettings(), nil)

	init, err := b.Initiate(context.Background(), decimal.NewFromInt(3), "usd", nil)
	require.NoError(t, err)
	assert.Equal(t, "ext-1", init.ExternalID)

	status, err := b.Confirm(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, status)
}
