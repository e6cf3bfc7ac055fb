package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
)

// Store is an in-process unit of work. Units of work are serialised by a
// single mutex and run against a copy of the state that replaces the
// committed state only when the unit succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	products map[string]*inventory.Product
	orders   map[string]*order.Order
	payments map[string]*payment.Payment
	outbox   []outbox.Message
	seq      map[string]int // insertion order, used as a tiebreaker for newest-first listing
	nextSeq  int
}

func NewStore() *Store {
	return &Store{state: &state{
		products: make(map[string]*inventory.Product),
		orders:   make(map[string]*order.Order),
		payments: make(map[string]*payment.Payment),
		seq:      make(map[string]int),
	}}
}

var _ application.UnitOfWork = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos application.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("memory store: unit of work panicked: %v", r)
		}
	}()

	if err := fn(ctx, application.Repositories{
		Products: &InventoryRepository{s: work},
		Orders:   &OrderRepository{s: work},
		Payments: &PaymentRepository{s: work},
		Outbox:   &OutboxRepository{s: work},
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// SeedProduct inserts a catalog entry unless one with the same id exists.
// It reports whether the entry was created.
func (s *Store) SeedProduct(ctx context.Context, p *inventory.Product) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p == nil || p.ID == "" {
		return false, fmt.Errorf("memory store: product id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.products[p.ID]; ok {
		return false, nil
	}
	s.state.products[p.ID] = p.Clone()
	return true, nil
}

// PutProduct replaces a catalog entry outside any unit of work.
func (s *Store) PutProduct(ctx context.Context, p *inventory.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.ID == "" {
		return fmt.Errorf("memory store: product id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p.Clone()
	return nil
}

// Product returns the committed state of a product.
func (s *Store) Product(id string) (*inventory.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	return p.Clone(), ok
}

// Counts reports committed orders, payments and outbox messages.
func (s *Store) Counts() (orders, payments, messages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders), len(s.state.payments), len(s.state.outbox)
}

func (st *state) clone() *state {
	c := &state{
		products: make(map[string]*inventory.Product, len(st.products)),
		orders:   make(map[string]*order.Order, len(st.orders)),
		payments: make(map[string]*payment.Payment, len(st.payments)),
		outbox:   make([]outbox.Message, len(st.outbox)),
		seq:      make(map[string]int, len(st.seq)),
		nextSeq:  st.nextSeq,
	}
	for k, v := range st.products {
		c.products[k] = v.Clone()
	}
	for k, v := range st.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range st.payments {
		c.payments[k] = v.Clone()
	}
	copy(c.outbox, st.outbox)
	for k, v := range st.seq {
		c.seq[k] = v
	}
	return c
}

func (st *state) stamp(id string) {
	st.nextSeq++
	st.seq[id] = st.nextSeq
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
