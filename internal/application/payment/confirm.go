package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/identity"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCasePaymentConfirm = "payment.confirm"

type ConfirmPaymentInput struct {
	Actor     identity.Actor
	PaymentID string
}

type ConfirmPaymentResult struct {
	Payment *domain.Payment
}

// ConfirmPaymentUseCase asks the provider for the current status of a pending
// payment and settles it when the provider reports success.
type ConfirmPaymentUseCase struct {
	uow      application.UnitOfWork
	gateways domain.Resolver
	settler  settler
	obs      application.Instruments
}

func NewConfirmPaymentUseCase(
	uow application.UnitOfWork,
	gateways domain.Resolver,
	ids application.IDGenerator,
	tel observability.Observability,
) *ConfirmPaymentUseCase {
	return &ConfirmPaymentUseCase{
		uow:      uow,
		gateways: gateways,
		settler:  newSettler(ids, tel),
		obs:      application.NewInstruments(tel, paymentService),
	}
}

var _ application.UseCase[ConfirmPaymentInput, *ConfirmPaymentResult] = (*ConfirmPaymentUseCase)(nil)

func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, cmd ConfirmPaymentInput) (_ *ConfirmPaymentResult, err error) {
	ctx, run := uc.obs.Start(ctx, useCasePaymentConfirm, "ConfirmPayment",
		attribute.String("payment.id", cmd.PaymentID),
	)
	defer func() { run.End(err) }()

	if !cmd.Actor.Authenticated() {
		run.Fail("UNAUTHENTICATED")
		return nil, application.ErrUnauthenticated
	}
	if cmd.PaymentID == "" {
		run.Fail("PAYMENT_ID_REQUIRED")
		return nil, application.NewValidation("payment id is required")
	}

	var current *domain.Payment
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		p, err := repos.Payments.Get(ctx, cmd.PaymentID)
		if err != nil {
			return err
		}
		if !cmd.Actor.CanView(p.UserID) {
			return fmt.Errorf("%w: payment %s belongs to another user", application.ErrForbidden, p.ID)
		}
		current = p
		return nil
	})
	if err != nil {
		run.Fail(lookupFailureCode(err))
		return nil, err
	}
	if err := confirmable(current); err != nil {
		run.Fail(lookupFailureCode(err))
		return nil, err
	}

	gateway, err := uc.gateways.Gateway(current.Provider)
	if err != nil {
		run.Fail("PROVIDER_UNSUPPORTED")
		return nil, err
	}

	var status domain.Status
	err = run.External(string(current.Provider), "confirm", func() error {
		var cerr error
		status, cerr = gateway.Confirm(ctx, current.TransactionID)
		return cerr
	})
	if err != nil {
		run.Fail("GATEWAY_CONFIRM_FAILED")
		if !errors.Is(err, domain.ErrGateway) {
			err = fmt.Errorf("%w: %w", domain.ErrGateway, err)
		}
		return nil, err
	}

	run.Span().SetAttributes(attribute.String("payment.provider_status", string(status)))
	switch status {
	case domain.StatusSuccess:
	case domain.StatusPending, domain.StatusFailed:
		run.Fail("NOT_CONFIRMED")
		return nil, fmt.Errorf("%w: provider reports %s", domain.ErrNotConfirmed, status)
	default:
		run.Fail("GATEWAY_RESPONSE_INVALID")
		return nil, fmt.Errorf("%w: unknown provider status %q", domain.ErrGateway, status)
	}

	var settled *domain.Payment
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		p, err := repos.Payments.GetForUpdate(ctx, current.ID)
		if err != nil {
			return err
		}
		// A webhook may have settled it while the provider was being queried.
		if err := confirmable(p); err != nil {
			return err
		}
		if err := uc.settler.succeed(ctx, repos, p, domain.SourceConfirm); err != nil {
			return err
		}
		settled = p
		return nil
	})
	if err != nil {
		run.Fail(lookupFailureCode(err))
		return nil, err
	}

	run.Annotate(
		observability.F("payment_id", settled.ID),
		observability.F("order_id", settled.OrderID),
		observability.F("transaction_id", settled.TransactionID),
	)
	return &ConfirmPaymentResult{Payment: settled}, nil
}

func confirmable(p *domain.Payment) error {
	switch p.Status {
	case domain.StatusPending:
		if p.TransactionID == "" {
			return fmt.Errorf("%w: payment %s has no transaction id", domain.ErrInvalidTransition, p.ID)
		}
		return nil
	case domain.StatusSuccess:
		return fmt.Errorf("%w: payment %s", domain.ErrAlreadySettled, p.ID)
	case domain.StatusFailed:
		return fmt.Errorf("%w: payment %s already failed", domain.ErrInvalidTransition, p.ID)
	default:
		return fmt.Errorf("%w: payment %s has unknown status %q", domain.ErrInvalidTransition, p.ID, p.Status)
	}
}
