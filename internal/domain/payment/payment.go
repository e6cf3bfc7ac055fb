package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("payment: not found")
	ErrConflict            = errors.New("payment: conflict")
	ErrAlreadySettled      = errors.New("payment: already settled")
	ErrInvalidTransition   = errors.New("payment: invalid status transition")
	ErrInvalidAmount       = errors.New("payment: amount must be greater than zero")
	ErrUnsupportedProvider = errors.New("payment: unsupported provider")
	ErrGateway             = errors.New("payment: gateway error")
	ErrNotConfirmed        = errors.New("payment: not confirmed by provider")
	ErrInvalidSignature    = errors.New("payment: invalid webhook signature")
	ErrMalformedEvent      = errors.New("payment: malformed webhook event")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderBkash  Provider = "bkash"
)

// Providers lists every provider the service knows about.
var Providers = []Provider{ProviderStripe, ProviderBkash}

// ParseProvider accepts provider keys case-insensitively.
func ParseProvider(raw string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(raw))); p {
	case ProviderStripe, ProviderBkash:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, raw)
	}
}

// Payment is one settlement attempt against one order.
type Payment struct {
	ID       string
	UserID   string
	OrderID  string
	Amount   decimal.Decimal
	Provider Provider
	// TransactionID is the provider-assigned id; empty until the gateway answers.
	TransactionID string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(id, userID, orderID string, provider Provider, amount decimal.Decimal) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := ParseProvider(string(provider)); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Payment{
		ID:        id,
		UserID:    userID,
		OrderID:   orderID,
		Amount:    amount,
		Provider:  provider,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Attach records the gateway's answer to an initiation. A provider reporting
// success at initiation still leaves the payment pending: only a confirmation
// or a webhook may settle it.
func (p *Payment) Attach(transactionID string, providerStatus Status) error {
	if p.TransactionID != "" {
		return fmt.Errorf("%w: transaction id already set", ErrInvalidTransition)
	}
	if transactionID == "" {
		return fmt.Errorf("%w: empty transaction id", ErrGateway)
	}
	p.TransactionID = transactionID
	switch providerStatus {
	case StatusFailed:
		p.Status = StatusFailed
	case StatusPending, StatusSuccess:
		p.Status = StatusPending
	default:
		return fmt.Errorf("%w: unknown provider status %q", ErrGateway, providerStatus)
	}
	p.touch()
	return nil
}

// MarkSucceeded moves a pending payment to SUCCESS.
func (p *Payment) MarkSucceeded() error {
	switch p.Status {
	case StatusPending:
		p.Status = StatusSuccess
		p.touch()
		return nil
	case StatusSuccess:
		return ErrAlreadySettled
	case StatusFailed:
		return fmt.Errorf("%w: payment already failed", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, p.Status)
	}
}

// MarkFailed moves a pending payment to FAILED.
func (p *Payment) MarkFailed() error {
	switch p.Status {
	case StatusPending:
		p.Status = StatusFailed
		p.touch()
		return nil
	case StatusSuccess:
		return ErrAlreadySettled
	case StatusFailed:
		return fmt.Errorf("%w: payment already failed", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, p.Status)
	}
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now().UTC()
}
