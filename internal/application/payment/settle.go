package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-settlement/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
)

const paymentService = "payment-service"

// settler applies provider outcomes to a locked payment and its order.
// It must run inside an open unit of work.
type settler struct {
	ids         application.IDGenerator
	settlements observability.Counter // payment_settlements_total{provider,source,status}
}

func newSettler(ids application.IDGenerator, tel observability.Observability) settler {
	m := observability.NopMetrics()
	if tel != nil {
		m = tel.Metrics()
	}
	return settler{ids: ids, settlements: m.Counter(observability.MPaymentSettlements)}
}

// succeed moves p to SUCCESS and its order to PAID in the caller's transaction.
func (s settler) succeed(ctx context.Context, repos application.Repositories, p *domain.Payment, source string) error {
	if err := p.MarkSucceeded(); err != nil {
		return err
	}
	o, err := repos.Orders.GetForUpdate(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("order %s: %w", p.OrderID, err)
	}
	if err := o.MarkPaid(); err != nil {
		return fmt.Errorf("settle payment %s: %w", p.ID, err)
	}
	if err := repos.Payments.UpdateStatus(ctx, p); err != nil {
		return err
	}
	if err := repos.Orders.UpdateStatus(ctx, o); err != nil {
		return err
	}
	if err := s.emit(ctx, repos, domain.NewSettledEvent(p, source)); err != nil {
		return err
	}
	s.settlements.Add(1,
		observability.L("provider", string(p.Provider)),
		observability.L("source", source),
		observability.L("status", string(domain.StatusSuccess)),
	)
	return nil
}

// fail moves p to FAILED in the caller's transaction. The order stays PENDING
// so another attempt can be made.
func (s settler) fail(ctx context.Context, repos application.Repositories, p *domain.Payment, source string) error {
	if err := p.MarkFailed(); err != nil {
		return err
	}
	if err := repos.Payments.UpdateStatus(ctx, p); err != nil {
		return err
	}
	if err := s.emit(ctx, repos, domain.NewFailedEvent(p, source)); err != nil {
		return err
	}
	s.settlements.Add(1,
		observability.L("provider", string(p.Provider)),
		observability.L("source", source),
		observability.L("status", string(domain.StatusFailed)),
	)
	return nil
}

func (s settler) emit(ctx context.Context, repos application.Repositories, e domoutbox.Event) error {
	msg, err := domoutbox.NewMessage(s.ids.NewID(), e)
	if err != nil {
		return err
	}
	return repos.Outbox.Append(ctx, msg)
}

// isBusinessRejection reports errors that retrying cannot fix.
func isBusinessRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domorder.ErrInvalidTransition) ||
		errors.Is(err, domorder.ErrNotFound)
}
