package order

import "time"

// CreatedEvent is emitted once an order and its line items are committed.
type CreatedEvent struct {
	OrderID    string        `json:"order_id"`
	CustomerID string        `json:"customer_id"`
	Total      string        `json:"total"`
	Items      []CreatedLine `json:"items"`
	OccurredAt time.Time     `json:"occurred_at"`
}

type CreatedLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

func (CreatedEvent) EventName() string     { return "order.created" }
func (e CreatedEvent) AggregateID() string { return e.OrderID }

func NewCreatedEvent(o *Order) CreatedEvent {
	lines := make([]CreatedLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, CreatedLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return CreatedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Total:      o.Total.StringFixed(2),
		Items:      lines,
		OccurredAt: time.Now().UTC(),
	}
}
