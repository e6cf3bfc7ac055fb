package memory

import (
	"context"
	"fmt"
	"sort"

	domorder "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
)

type PaymentRepository struct {
	s *state
}

func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}
	if _, ok := r.s.orders[p.OrderID]; !ok {
		return fmt.Errorf("payment repository: %w", domorder.ErrNotFound)
	}
	if _, exists := r.s.payments[p.ID]; exists {
		return domain.ErrConflict
	}
	for _, existing := range r.s.payments {
		if p.TransactionID != "" && existing.TransactionID == p.TransactionID {
			return fmt.Errorf("%w: transaction id %s already recorded", domain.ErrConflict, p.TransactionID)
		}
		if p.Status != domain.StatusFailed && existing.OrderID == p.OrderID && existing.Status != domain.StatusFailed {
			return fmt.Errorf("%w: order %s already has an open payment", domain.ErrConflict, p.OrderID)
		}
	}
	r.s.payments[p.ID] = p.Clone()
	r.s.stamp(p.ID)
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	_ = ctx
	p, ok := r.s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return r.Get(ctx, id)
}

func (r *PaymentRepository) GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (*domain.Payment, error) {
	_ = ctx
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}
	for _, p := range r.s.payments {
		if p.TransactionID == transactionID {
			return p.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *PaymentRepository) HasOpenForOrder(ctx context.Context, orderID string) (bool, error) {
	_ = ctx
	for _, p := range r.s.payments {
		if p.OrderID == orderID && p.Status != domain.StatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (r *PaymentRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Payment, error) {
	_ = ctx
	out := make([]*domain.Payment, 0, len(r.s.payments))
	for _, p := range r.s.payments {
		if f.UserID != "" && p.UserID != f.UserID {
			continue
		}
		if f.OrderID != "" && p.OrderID != f.OrderID {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.seq[out[i].ID] > r.s.seq[out[j].ID]
	})
	return page(out, f.Limit, f.Offset), nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}
	current, ok := r.s.payments[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	current.Status = p.Status
	current.UpdatedAt = p.UpdatedAt
	return nil
}
