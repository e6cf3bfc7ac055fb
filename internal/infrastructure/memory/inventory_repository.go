package memory

import (
	"context"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
)

type InventoryRepository struct {
	s *state
}

// GetForUpdate needs no row lock here: the whole unit of work already holds the store mutex.
func (r *InventoryRepository) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx
	p, ok := r.s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *InventoryRepository) UpdateStock(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("inventory repository: id is required")
	}
	current, ok := r.s.products[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock < 0 {
		return fmt.Errorf("inventory repository: negative stock for %s", p.ID)
	}
	current.Stock = p.Stock
	current.UpdatedAt = p.UpdatedAt
	return nil
}
