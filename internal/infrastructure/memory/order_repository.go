package memory

import (
	"context"
	"fmt"
	"sort"

	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
)

type OrderRepository struct {
	s *state
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	if _, exists := r.s.orders[o.ID]; exists {
		return domain.ErrConflict
	}
	for _, it := range o.Items {
		if _, ok := r.s.products[it.ProductID]; !ok {
			return fmt.Errorf("order repository: unknown product %s", it.ProductID)
		}
	}
	r.s.orders[o.ID] = o.Clone()
	r.s.stamp(o.ID)
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *OrderRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Order, error) {
	_ = ctx
	out := make([]*domain.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.seq[out[i].ID] > r.s.seq[out[j].ID]
	})
	return page(out, f.Limit, f.Offset), nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	current, ok := r.s.orders[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	current.Status = o.Status
	current.UpdatedAt = o.UpdatedAt
	return nil
}
