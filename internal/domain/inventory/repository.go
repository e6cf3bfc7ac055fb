package inventory

import "context"

type Repository interface {
	// GetForUpdate loads the product and holds a write lock on it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Product, error)
	UpdateStock(ctx context.Context, p *Product) error
}
