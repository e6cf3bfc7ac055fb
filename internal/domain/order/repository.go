package order

import "context"

// ListFilter narrows List. An empty CustomerID lists every order.
type ListFilter struct {
	CustomerID string
	Limit      int
	Offset     int
}

type Repository interface {
	// Insert persists the order together with its line items.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// List returns orders newest first.
	List(ctx context.Context, filter ListFilter) ([]*Order, error)
	UpdateStatus(ctx context.Context, order *Order) error
}
