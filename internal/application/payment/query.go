package payment

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/identity"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCasePaymentGet  = "payment.get"
	useCasePaymentList = "payment.list"
)

type GetPaymentInput struct {
	Actor     identity.Actor
	PaymentID string
}

type GetPaymentUseCase struct {
	uow application.UnitOfWork
	obs application.Instruments
}

func NewGetPaymentUseCase(uow application.UnitOfWork, tel observability.Observability) *GetPaymentUseCase {
	return &GetPaymentUseCase{uow: uow, obs: application.NewInstruments(tel, paymentService)}
}

func (uc *GetPaymentUseCase) Execute(ctx context.Context, cmd GetPaymentInput) (_ *domain.Payment, err error) {
	ctx, run := uc.obs.Start(ctx, useCasePaymentGet, "GetPayment",
		attribute.String("payment.id", cmd.PaymentID),
	)
	defer func() { run.End(err) }()

	if !cmd.Actor.Authenticated() {
		run.Fail("UNAUTHENTICATED")
		return nil, application.ErrUnauthenticated
	}

	var p *domain.Payment
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		var gerr error
		p, gerr = repos.Payments.Get(ctx, cmd.PaymentID)
		return gerr
	})
	if err != nil {
		run.Fail(lookupFailureCode(err))
		return nil, err
	}
	if !cmd.Actor.CanView(p.UserID) {
		run.Fail("FORBIDDEN")
		return nil, fmt.Errorf("%w: payment %s belongs to another user", application.ErrForbidden, p.ID)
	}
	return p, nil
}

type ListPaymentsInput struct {
	Actor   identity.Actor
	OrderID string
	Limit   int
	Offset  int
}

// ListPaymentsUseCase lists payments visible to the actor, newest first.
type ListPaymentsUseCase struct {
	uow application.UnitOfWork
	obs application.Instruments
}

func NewListPaymentsUseCase(uow application.UnitOfWork, tel observability.Observability) *ListPaymentsUseCase {
	return &ListPaymentsUseCase{uow: uow, obs: application.NewInstruments(tel, paymentService)}
}

func (uc *ListPaymentsUseCase) Execute(ctx context.Context, cmd ListPaymentsInput) (_ []*domain.Payment, err error) {
	ctx, run := uc.obs.Start(ctx, useCasePaymentList, "ListPayments",
		attribute.Bool("actor.staff", cmd.Actor.Staff),
	)
	defer func() { run.End(err) }()

	if !cmd.Actor.Authenticated() {
		run.Fail("UNAUTHENTICATED")
		return nil, application.ErrUnauthenticated
	}

	filter := domain.ListFilter{OrderID: cmd.OrderID}
	filter.Limit, filter.Offset = application.Page(cmd.Limit, cmd.Offset)
	if !cmd.Actor.Staff {
		filter.UserID = cmd.Actor.UserID
	}

	var out []*domain.Payment
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		var lerr error
		out, lerr = repos.Payments.List(ctx, filter)
		return lerr
	})
	if err != nil {
		run.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	run.Annotate(observability.F("count", len(out)))
	return out, nil
}
