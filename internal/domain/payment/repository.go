package payment

import "context"

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	UserID  string
	OrderID string
	Limit   int
	Offset  int
}

type Repository interface {
	// Insert fails with ErrConflict when the transaction id is taken or the
	// order already has a pending or successful payment.
	Insert(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetForUpdate(ctx context.Context, id string) (*Payment, error)
	GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (*Payment, error)
	// HasOpenForOrder reports whether the order has a pending or successful payment.
	HasOpenForOrder(ctx context.Context, orderID string) (bool, error)
	// List returns payments newest first.
	List(ctx context.Context, filter ListFilter) ([]*Payment, error)
	UpdateStatus(ctx context.Context, p *Payment) error
}
