package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-settlement/internal/application/order"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/identity"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/id"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped in -short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("settlement"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := Open(ctx, Config{Host: host, Port: port.Int(), User: "testuser", Password: "testpass", DBName: "settlement"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrations are idempotent")
	return NewStore(db)
}

func seedProduct(t *testing.T, s *Store, id, price string, stock int) {
	t.Helper()
	p, err := inventory.NewProduct(id, "Product "+id, "SKU-"+id, decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	created, err := s.SeedProduct(context.Background(), p)
	require.NoError(t, err)
	require.True(t, created)
}

func placeOrder(t *testing.T, s *Store, customer string, lines map[string]int) *order.Order {
	t.Helper()
	o := order.New(uuid.NewString(), customer, "1 Main St")
	err := s.WithinTx(context.Background(), func(ctx context.Context, repos application.Repositories) error {
		for id, qty := range lines {
			p, err := repos.Products.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := p.Deduct(qty); err != nil {
				return err
			}
			item, err := order.NewLineItem(p.ID, qty, p.Price)
			if err != nil {
				return err
			}
			if err := repos.Products.UpdateStock(ctx, p); err != nil {
				return err
			}
			o.AddItem(item)
		}
		return repos.Orders.Insert(ctx, o)
	})
	require.NoError(t, err)
	return o
}

func stock(t *testing.T, s *Store, id string) int {
	t.Helper()
	var n int
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, repos application.Repositories) error {
		p, err := repos.Products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		n = p.Stock
		return nil
	}))
	return n
}

func TestStore(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	seedProduct(t, s, "A", "1000.00", 10)
	seedProduct(t, s, "B", "50.00", 20)

	t.Run("order round trip", func(t *testing.T) {
		o := placeOrder(t, s, "alice", map[string]int{"A": 2})
		assert.Equal(t, 8, stock(t, s, "A"))

		var got *order.Order
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			var err error
			got, err = repos.Orders.Get(ctx, o.ID)
			return err
		}))
		assert.Equal(t, "2000.00", got.Total.StringFixed(2))
		assert.Equal(t, order.StatusPending, got.Status)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "1000.00", got.Items[0].UnitPrice.StringFixed(2))
		assert.Equal(t, 2, got.Items[0].Quantity)
	})

	t.Run("rollback discards every write", func(t *testing.T) {
		before := stock(t, s, "B")
		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			p, err := repos.Products.GetForUpdate(ctx, "B")
			if err != nil {
				return err
			}
			require.NoError(t, p.Deduct(5))
			require.NoError(t, repos.Products.UpdateStock(ctx, p))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, before, stock(t, s, "B"))
	})

	t.Run("unknown rows map to not found", func(t *testing.T) {
		err := s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			_, err := repos.Products.GetForUpdate(ctx, "nope")
			assert.ErrorIs(t, err, inventory.ErrNotFound)
			_, err = repos.Orders.Get(ctx, "nope")
			assert.ErrorIs(t, err, order.ErrNotFound)
			_, err = repos.Payments.GetByTransactionIDForUpdate(ctx, "pi_nope")
			assert.ErrorIs(t, err, payment.ErrNotFound)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("payments enforce one open attempt and unique transaction ids", func(t *testing.T) {
		o := placeOrder(t, s, "bob", map[string]int{"B": 1})
		newPayment := func(tx string) *payment.Payment {
			p, err := payment.New(uuid.NewString(), "bob", o.ID, payment.ProviderStripe, o.Total)
			require.NoError(t, err)
			require.NoError(t, p.Attach(tx, payment.StatusPending))
			return p
		}
		insert := func(p *payment.Payment) error {
			return s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
				return repos.Payments.Insert(ctx, p)
			})
		}

		first := newPayment("pi_first")
		require.NoError(t, insert(first))
		assert.ErrorIs(t, insert(newPayment("pi_second")), payment.ErrConflict)

		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			p, err := repos.Payments.GetByTransactionIDForUpdate(ctx, "pi_first")
			if err != nil {
				return err
			}
			if err := p.MarkFailed(); err != nil {
				return err
			}
			return repos.Payments.UpdateStatus(ctx, p)
		}))

		assert.ErrorIs(t, insert(newPayment("pi_first")), payment.ErrConflict, "transaction ids stay unique")
		require.NoError(t, insert(newPayment("pi_retry")))

		var list []*payment.Payment
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			var err error
			list, err = repos.Payments.List(ctx, payment.ListFilter{UserID: "bob", OrderID: o.ID, Limit: 10})
			return err
		}))
		require.Len(t, list, 2)
		assert.Equal(t, "pi_retry", list[0].TransactionID)
		assert.True(t, list[0].Amount.Equal(o.Total))
	})

	t.Run("outbox pending and mark published", func(t *testing.T) {
		o := placeOrder(t, s, "carol", map[string]int{"B": 1})
		msg, err := outbox.NewMessage(uuid.NewString(), order.NewCreatedEvent(o))
		require.NoError(t, err)
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			return repos.Outbox.Append(ctx, msg)
		}))

		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			pending, err := repos.Outbox.Pending(ctx, 10)
			if err != nil {
				return err
			}
			require.Len(t, pending, 1)
			assert.Equal(t, "order.created", pending[0].Name)
			assert.Equal(t, o.ID, pending[0].Key)
			assert.JSONEq(t, string(msg.Payload), string(pending[0].Payload))
			return repos.Outbox.MarkPublished(ctx, pending[0].ID, time.Now())
		}))

		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			pending, err := repos.Outbox.Pending(ctx, 10)
			assert.Empty(t, pending)
			return err
		}))
	})

	t.Run("orders list newest first per customer", func(t *testing.T) {
		first := placeOrder(t, s, "dave", map[string]int{"B": 1})
		time.Sleep(5 * time.Millisecond)
		second := placeOrder(t, s, "dave", map[string]int{"B": 1})

		var got []*order.Order
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			var err error
			got, err = repos.Orders.List(ctx, order.ListFilter{CustomerID: "dave", Limit: 10})
			return err
		}))
		require.Len(t, got, 2)
		assert.Equal(t, second.ID, got[0].ID)
		assert.Equal(t, first.ID, got[1].ID)
		assert.Len(t, got[0].Items, 1)
	})

	t.Run("seeding again keeps live stock and price", func(t *testing.T) {
		seedProduct(t, s, "S", "10.00", 10)
		placeOrder(t, s, "erin", map[string]int{"S": 2})

		again, err := inventory.NewProduct("S", "Product S", "SKU-S", decimal.RequireFromString("1.00"), 10)
		require.NoError(t, err)
		created, err := s.SeedProduct(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)

		assert.Equal(t, 8, stock(t, s, "S"))
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
			p, err := repos.Products.GetForUpdate(ctx, "S")
			if err != nil {
				return err
			}
			assert.Equal(t, "10.00", p.Price.StringFixed(2))
			return nil
		}))
	})

	t.Run("concurrent buyers cannot oversell", func(t *testing.T) {
		seedProduct(t, s, "R", "5.00", 10)
		create := apporder.NewCreateOrderUseCase(s, id.NewUUIDGenerator(), nil)

		const buyers = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < buyers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := create.Execute(ctx, apporder.CreateOrderInput{
					Actor: identity.Actor{UserID: fmt.Sprintf("buyer-%d", i)},
					Items: []apporder.LineInput{{ProductID: "R", Quantity: 6}},
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
					return
				}
				assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 4, stock(t, s, "R"))
	})

	t.Run("orders over the same products in opposite order do not deadlock", func(t *testing.T) {
		seedProduct(t, s, "X", "1.00", 100)
		seedProduct(t, s, "Y", "1.00", 100)
		create := apporder.NewCreateOrderUseCase(s, id.NewUUIDGenerator(), nil)

		const rounds = 20
		var wg sync.WaitGroup
		errs := make(chan error, 2*rounds)
		for i := 0; i < rounds; i++ {
			for _, lines := range [][]apporder.LineInput{
				{{ProductID: "X", Quantity: 1}, {ProductID: "Y", Quantity: 1}},
				{{ProductID: "Y", Quantity: 1}, {ProductID: "X", Quantity: 1}},
			} {
				wg.Add(1)
				go func(lines []apporder.LineInput) {
					defer wg.Done()
					_, err := create.Execute(ctx, apporder.CreateOrderInput{Actor: identity.Actor{UserID: "frank"}, Items: lines})
					errs <- err
				}(lines)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
		assert.Equal(t, 60, stock(t, s, "X"))
		assert.Equal(t, 60, stock(t, s, "Y"))
	})
}
