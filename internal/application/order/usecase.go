package order

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/identity"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	useCaseOrderList   = "order.list"
	useCaseOrderGet    = "order.get"
)

type LineInput struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	Actor           identity.Actor
	ShippingAddress string
	Items           []LineInput
}

type CreateOrderResult struct {
	Order *domain.Order
}

// CreateOrderUseCase places an order: stock is checked, prices snapshotted and
// stock decremented for every line inside one transaction.
type CreateOrderUseCase struct {
	uow application.UnitOfWork
	ids application.IDGenerator
	obs application.Instruments
}

// NewCreateOrderUseCase wires the dependencies required to execute the use case.
func NewCreateOrderUseCase(uow application.UnitOfWork, ids application.IDGenerator, tel observability.Observability) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		uow: uow,
		ids: ids,
		obs: application.NewInstruments(tel, orderService),
	}
}

var _ application.UseCase[CreateOrderInput, *CreateOrderResult] = (*CreateOrderUseCase)(nil)

// Execute performs the order creation flow.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, run := uc.obs.Start(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.customer_id", cmd.Actor.UserID),
		attribute.Int("order.lines", len(cmd.Items)),
	)
	defer func() { run.End(err) }()

	if !cmd.Actor.Authenticated() {
		run.Fail("UNAUTHENTICATED")
		return nil, application.ErrUnauthenticated
	}
	if len(cmd.Items) == 0 {
		run.Fail("ITEMS_REQUIRED")
		return nil, application.NewValidation("at least one item is required")
	}
	for i, line := range cmd.Items {
		if line.ProductID == "" {
			run.Fail("PRODUCT_ID_REQUIRED")
			return nil, application.NewValidation("items[%d]: product id is required", i)
		}
		if line.Quantity <= 0 {
			run.Fail("QUANTITY_INVALID")
			return nil, application.NewValidation("items[%d]: quantity must be greater than zero", i)
		}
	}
	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	entity := domain.New(uc.ids.NewID(), cmd.Actor.UserID, cmd.ShippingAddress)

	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		ids, products, err := lockProducts(ctx, repos.Products, cmd.Items)
		if err != nil {
			return err
		}
		for _, line := range cmd.Items {
			product := products[line.ProductID]
			if err := product.Deduct(line.Quantity); err != nil {
				return err
			}
			item, err := domain.NewLineItem(product.ID, line.Quantity, product.Price)
			if err != nil {
				return err
			}
			entity.AddItem(item)
		}
		for _, id := range ids {
			if err := repos.Products.UpdateStock(ctx, products[id]); err != nil {
				return err
			}
		}
		if err := entity.Validate(); err != nil {
			return err
		}
		if err := repos.Orders.Insert(ctx, entity); err != nil {
			return err
		}
		msg, err := domoutbox.NewMessage(uc.ids.NewID(), domain.NewCreatedEvent(entity))
		if err != nil {
			return err
		}
		return repos.Outbox.Append(ctx, msg)
	})
	if err != nil {
		run.Fail(createFailureCode(err))
		return nil, err
	}

	run.Span().SetAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.total", entity.Total.StringFixed(2)),
	)
	run.Span().AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", entity.ID)))
	run.Annotate(
		observability.F("order_id", entity.ID),
		observability.F("total", entity.Total.StringFixed(2)),
	)

	return &CreateOrderResult{Order: entity}, nil
}

// lockProducts takes the row locks for every distinct product in ascending
// id order, so two orders over the same products always lock them in the
// same sequence.
func lockProducts(ctx context.Context, repo inventory.Repository, lines []LineInput) ([]string, map[string]*inventory.Product, error) {
	products := make(map[string]*inventory.Product, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, seen := products[line.ProductID]; !seen {
			products[line.ProductID] = nil
			ids = append(ids, line.ProductID)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		p, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("product %s: %w", id, err)
		}
		products[id] = p
	}
	return ids, products, nil
}

func createFailureCode(err error) string {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, inventory.ErrInactive):
		return "PRODUCT_INACTIVE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "TX_FAILED"
	}
}

type ListOrdersInput struct {
	Actor  identity.Actor
	Limit  int
	Offset int
}

// ListOrdersUseCase lists orders visible to the actor, newest first.
type ListOrdersUseCase struct {
	uow application.UnitOfWork
	obs application.Instruments
}

func NewListOrdersUseCase(uow application.UnitOfWork, tel observability.Observability) *ListOrdersUseCase {
	return &ListOrdersUseCase{uow: uow, obs: application.NewInstruments(tel, orderService)}
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, cmd ListOrdersInput) (_ []*domain.Order, err error) {
	ctx, run := uc.obs.Start(ctx, useCaseOrderList, "ListOrders",
		attribute.Bool("actor.staff", cmd.Actor.Staff),
	)
	defer func() { run.End(err) }()

	if !cmd.Actor.Authenticated() {
		run.Fail("UNAUTHENTICATED")
		return nil, application.ErrUnauthenticated
	}

	filter := domain.ListFilter{}
	filter.Limit, filter.Offset = application.Page(cmd.Limit, cmd.Offset)
	if !cmd.Actor.Staff {
		filter.CustomerID = cmd.Actor.UserID
	}

	var orders []*domain.Order
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		var lerr error
		orders, lerr = repos.Orders.List(ctx, filter)
		return lerr
	})
	if err != nil {
		run.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	run.Annotate(observability.F("count", len(orders)))
	return orders, nil
}

type GetOrderInput struct {
	Actor   identity.Actor
	OrderID string
}

// GetOrderUseCase returns one order to its owner or to staff.
type GetOrderUseCase struct {
	uow application.UnitOfWork
	obs application.Instruments
}

func NewGetOrderUseCase(uow application.UnitOfWork, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{uow: uow, obs: application.NewInstruments(tel, orderService)}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, cmd GetOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.obs.Start(ctx, useCaseOrderGet, "GetOrder",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { run.End(err) }()

	if !cmd.Actor.Authenticated() {
		run.Fail("UNAUTHENTICATED")
		return nil, application.ErrUnauthenticated
	}
	if cmd.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}

	var entity *domain.Order
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		var gerr error
		entity, gerr = repos.Orders.Get(ctx, cmd.OrderID)
		return gerr
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
		} else {
			run.Fail("REPO_GET_FAILED")
		}
		return nil, err
	}
	if !cmd.Actor.CanView(entity.CustomerID) {
		run.Fail("FORBIDDEN")
		return nil, fmt.Errorf("%w: order %s belongs to another user", application.ErrForbidden, entity.ID)
	}
	return entity, nil
}
