package payment_test

import (
	"context"
	"sync"
	"testing"

	apporder "github.com/Zhima-Mochi/minishop-settlement/internal/application/order"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/identity"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	alice = identity.Actor{UserID: "alice"}
	bob   = identity.Actor{UserID: "bob"}
	staff = identity.Actor{UserID: "ops", Staff: true}
)

// fakeGateway hands out sequential transaction ids and answers Confirm with a fixed status.
type fakeGateway struct {
	mu            sync.Mutex
	prefix        string
	next          int
	confirmStatus domain.Status
	initErr       error
	confirmErr    error
	amounts       []decimal.Decimal
	metadata      []map[string]string
	confirms      int
}

func newFakeGateway(prefix string) *fakeGateway {
	return &fakeGateway{prefix: prefix, confirmStatus: domain.StatusSuccess}
}

func (g *fakeGateway) Initiate(_ context.Context, amount decimal.Decimal, _ string, metadata map[string]string) (domain.Initiation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return domain.Initiation{}, g.initErr
	}
	g.next++
	g.amounts = append(g.amounts, amount)
	g.metadata = append(g.metadata, metadata)
	return domain.Initiation{
		ExternalID:   g.prefix + string(rune('0'+g.next)),
		Status:       domain.StatusPending,
		ClientSecret: "secret-" + g.prefix,
	}, nil
}

func (g *fakeGateway) Confirm(context.Context, string) (domain.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirms++
	if g.confirmErr != nil {
		return "", g.confirmErr
	}
	return g.confirmStatus, nil
}

type fixture struct {
	store    *memory.Store
	ids      id.UUIDGenerator
	stripe   *fakeGateway
	bkash    *fakeGateway
	gateways *gateway.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewStore(),
		ids:    id.NewUUIDGenerator(),
		stripe: newFakeGateway("pi_"),
		bkash:  newFakeGateway("bkash_txn_"),
	}
	f.gateways = gateway.NewRegistry().
		Register(domain.ProviderStripe, f.stripe).
		Register(domain.ProviderBkash, f.bkash)

	for _, p := range []struct {
		id    string
		price string
	}{{"A", "1000.00"}, {"B", "50.00"}} {
		prod, err := inventory.NewProduct(p.id, "Product "+p.id, "SKU-"+p.id, decimal.RequireFromString(p.price), 100)
		require.NoError(t, err)
		require.NoError(t, f.store.PutProduct(context.Background(), prod))
	}
	return f
}

// placeOrder creates a 2050.00 order for actor.
func (f *fixture) placeOrder(t *testing.T, actor identity.Actor) *domorder.Order {
	t.Helper()
	res, err := apporder.NewCreateOrderUseCase(f.store, f.ids, observability.Nop()).Execute(context.Background(), apporder.CreateOrderInput{
		Actor:           actor,
		ShippingAddress: "1 Main St",
		Items: []apporder.LineInput{
			{ProductID: "A", Quantity: 2},
			{ProductID: "B", Quantity: 1},
		},
	})
	require.NoError(t, err)
	return res.Order
}

func (f *fixture) order(t *testing.T, orderID string) *domorder.Order {
	t.Helper()
	o, err := apporder.NewGetOrderUseCase(f.store, nil).Execute(context.Background(), apporder.GetOrderInput{Actor: staff, OrderID: orderID})
	require.NoError(t, err)
	return o
}
