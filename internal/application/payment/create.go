package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/identity"
	domorder "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const useCasePaymentCreate = "payment.create"

type CreatePaymentInput struct {
	Actor    identity.Actor
	OrderID  string
	Provider string
}

type CreatePaymentResult struct {
	Payment      *domain.Payment
	ClientSecret string
}

// CreatePaymentUseCase starts a settlement attempt for an order the caller owns.
// The amount always comes from the order total.
type CreatePaymentUseCase struct {
	uow      application.UnitOfWork
	gateways domain.Resolver
	ids      application.IDGenerator
	currency string
	obs      application.Instruments
}

func NewCreatePaymentUseCase(
	uow application.UnitOfWork,
	gateways domain.Resolver,
	ids application.IDGenerator,
	currency string,
	tel observability.Observability,
) *CreatePaymentUseCase {
	return &CreatePaymentUseCase{
		uow:      uow,
		gateways: gateways,
		ids:      ids,
		currency: currency,
		obs:      application.NewInstruments(tel, paymentService),
	}
}

var _ application.UseCase[CreatePaymentInput, *CreatePaymentResult] = (*CreatePaymentUseCase)(nil)

func (uc *CreatePaymentUseCase) Execute(ctx context.Context, cmd CreatePaymentInput) (_ *CreatePaymentResult, err error) {
	ctx, run := uc.obs.Start(ctx, useCasePaymentCreate, "CreatePayment",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("payment.provider", cmd.Provider),
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
	provider, err := domain.ParseProvider(cmd.Provider)
	if err != nil {
		run.Fail("PROVIDER_UNSUPPORTED")
		return nil, err
	}
	gateway, err := uc.gateways.Gateway(provider)
	if err != nil {
		run.Fail("PROVIDER_UNSUPPORTED")
		return nil, err
	}

	var target *domorder.Order
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		o, err := repos.Orders.Get(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if !o.OwnedBy(cmd.Actor.UserID) {
			return fmt.Errorf("%w: order %s belongs to another user", application.ErrForbidden, o.ID)
		}
		switch o.Status {
		case domorder.StatusPending:
		case domorder.StatusPaid:
			return fmt.Errorf("%w: order %s is already paid", domain.ErrAlreadySettled, o.ID)
		case domorder.StatusCanceled:
			return fmt.Errorf("%w: order %s is canceled", domain.ErrConflict, o.ID)
		default:
			return fmt.Errorf("%w: order %s has unknown status %q", domain.ErrConflict, o.ID, o.Status)
		}
		open, err := repos.Payments.HasOpenForOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: order %s already has a payment in progress", domain.ErrConflict, o.ID)
		}
		target = o
		return nil
	})
	if err != nil {
		run.Fail(lookupFailureCode(err))
		return nil, err
	}

	entity, err := domain.New(uc.ids.NewID(), cmd.Actor.UserID, target.ID, provider, target.Total)
	if err != nil {
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, fmt.Errorf("payment: construct: %w", err)
	}

	// Provider calls never run inside a transaction.
	var initiation domain.Initiation
	err = run.External(string(provider), "initiate", func() error {
		var ierr error
		initiation, ierr = gateway.Initiate(ctx, entity.Amount, uc.currency, map[string]string{
			"order_id":   target.ID,
			"user_id":    cmd.Actor.UserID,
			"payment_id": entity.ID,
		})
		return ierr
	})
	if err != nil {
		run.Fail("GATEWAY_INITIATE_FAILED")
		if !errors.Is(err, domain.ErrGateway) {
			err = fmt.Errorf("%w: %w", domain.ErrGateway, err)
		}
		return nil, err
	}
	if err := entity.Attach(initiation.ExternalID, initiation.Status); err != nil {
		run.Fail("GATEWAY_RESPONSE_INVALID")
		return nil, err
	}

	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		return repos.Payments.Insert(ctx, entity)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent attempt won; the provider-side intent is left dangling.
			run.Logger().Warn("payment_insert_conflict",
				observability.F("order_id", target.ID),
				observability.F("transaction_id", entity.TransactionID),
			)
			run.Fail("PAYMENT_CONFLICT")
			return nil, err
		}
		run.Fail("REPO_INSERT_FAILED")
		return nil, err
	}

	run.Span().SetAttributes(
		attribute.String("payment.id", entity.ID),
		attribute.String("payment.status", string(entity.Status)),
	)
	run.Span().AddEvent("payment.initiated", trace.WithAttributes(
		attribute.String("payment.transaction_id", entity.TransactionID),
	))
	run.Annotate(
		observability.F("payment_id", entity.ID),
		observability.F("order_id", target.ID),
		observability.F("amount", entity.Amount.StringFixed(2)),
	)

	return &CreatePaymentResult{Payment: entity, ClientSecret: initiation.ClientSecret}, nil
}

func lookupFailureCode(err error) string {
	switch {
	case errors.Is(err, domorder.ErrNotFound), errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, application.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, domain.ErrAlreadySettled):
		return "ALREADY_SETTLED"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domorder.ErrInvalidTransition):
		return "CONFLICT"
	default:
		return "REPO_LOOKUP_FAILED"
	}
}
