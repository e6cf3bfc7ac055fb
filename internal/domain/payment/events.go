package payment

import "time"

// Sources of a status transition.
const (
	SourceConfirm = "confirm"
	SourceWebhook = "webhook"
)

// SettledEvent is emitted when a payment reaches SUCCESS and its order is PAID.
type SettledEvent struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	Provider      Provider  `json:"provider"`
	TransactionID string    `json:"transaction_id"`
	Amount        string    `json:"amount"`
	Source        string    `json:"source"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (SettledEvent) EventName() string     { return "payment.settled" }
func (e SettledEvent) AggregateID() string { return e.OrderID }

// FailedEvent is emitted when the provider reports a payment as failed.
type FailedEvent struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	Provider      Provider  `json:"provider"`
	TransactionID string    `json:"transaction_id"`
	Source        string    `json:"source"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (FailedEvent) EventName() string     { return "payment.failed" }
func (e FailedEvent) AggregateID() string { return e.OrderID }

func NewSettledEvent(p *Payment, source string) SettledEvent {
	return SettledEvent{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Provider:      p.Provider,
		TransactionID: p.TransactionID,
		Amount:        p.Amount.StringFixed(2),
		Source:        source,
		OccurredAt:    time.Now().UTC(),
	}
}

func NewFailedEvent(p *Payment, source string) FailedEvent {
	return FailedEvent{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		Provider:      p.Provider,
		TransactionID: p.TransactionID,
		Source:        source,
		OccurredAt:    time.Now().UTC(),
	}
}
