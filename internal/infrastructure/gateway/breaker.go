package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// ClientError is implemented by provider errors caused by the request itself
// (4xx). They are returned to the caller but do not count against the circuit.
type ClientError interface {
	ClientError() bool
}

type BreakerSettings struct {
	MaxRequests uint32        // trial requests allowed while half-open
	Interval    time.Duration // window after which closed-state counts reset
	Timeout     time.Duration // open period before a trial request
	MinRequests uint32
	FailureRate float64
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		MinRequests: 3,
		FailureRate: 0.6,
	}
}

// Breaker guards a gateway with a circuit breaker. An open circuit fails fast with ErrGateway.
type Breaker struct {
	next payment.Gateway
	cb   *gobreaker.CircuitBreaker
}

func WithBreaker(provider payment.Provider, next payment.Gateway, s BreakerSettings, tel observability.Observability) *Breaker {
	if tel == nil {
		tel = observability.Nop()
	}
	state := tel.Metrics().Gauge(observability.MGatewayCircuitState)
	logger := tel.Logger().With(observability.F("provider", string(provider)))
	label := observability.L("provider", string(provider))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(provider),
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRate
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ce ClientError
			if errors.As(err, &ce) && ce.ClientError() {
				return true
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			state.Set(stateValue(to), label)
			logger.Warn("gateway_circuit_state_changed",
				observability.F("from", from.String()),
				observability.F("to", to.String()),
			)
		},
	})
	state.Set(stateValue(gobreaker.StateClosed), label)
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Initiate(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (payment.Initiation, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Initiate(ctx, amount, currency, metadata)
	})
	if err != nil {
		return payment.Initiation{}, b.wrap(err)
	}
	return out.(payment.Initiation), nil
}

func (b *Breaker) Confirm(ctx context.Context, externalID string) (payment.Status, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Confirm(ctx, externalID)
	})
	if err != nil {
		return "", b.wrap(err)
	}
	return out.(payment.Status), nil
}

// State reports the circuit state name (closed, half-open, open).
func (b *Breaker) State() string { return b.cb.State().String() }

func (b *Breaker) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit %s: %w", payment.ErrGateway, b.cb.Name(), err)
	}
	if errors.Is(err, payment.ErrGateway) {
		return err
	}
	return fmt.Errorf("%w: %w", payment.ErrGateway, err)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

var _ payment.Gateway = (*Breaker)(nil)
