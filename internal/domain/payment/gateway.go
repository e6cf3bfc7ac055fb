package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Initiation is a gateway's synchronous answer to starting a settlement.
type Initiation struct {
	ExternalID string
	Status     Status
	// ClientSecret is handed to the caller's front end and never stored.
	ClientSecret string
}

// Gateway is implemented once per provider.
type Gateway interface {
	Initiate(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (Initiation, error)
	// Confirm actively queries the provider for the current status.
	Confirm(ctx context.Context, externalID string) (Status, error)
}

// Resolver selects the gateway for a provider key.
type Resolver interface {
	Gateway(p Provider) (Gateway, error)
}

type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventIgnored   EventKind = "ignored"
)

// WebhookEvent is an authenticated provider notification.
type WebhookEvent struct {
	ID            string
	Type          string
	Kind          EventKind
	TransactionID string
}

// WebhookVerifier authenticates and decodes a provider's webhook payload.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (WebhookEvent, error)
}
