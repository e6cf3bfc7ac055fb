package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	domain "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseWebhook = "payment.webhook"

// Webhook outcomes. Every outcome except an error is acknowledged to the provider.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
)

type WebhookInput struct {
	Provider  string
	Payload   []byte
	Signature string
}

type WebhookResult struct {
	EventID string
	Outcome string
}

// HandleWebhookUseCase authenticates provider notifications and applies them
// idempotently, keyed by the provider's transaction id.
type HandleWebhookUseCase struct {
	uow       application.UnitOfWork
	verifiers map[domain.Provider]domain.WebhookVerifier
	settler   settler
	events    observability.Counter // webhook_events_total{provider,type,outcome}
	obs       application.Instruments
}

func NewHandleWebhookUseCase(
	uow application.UnitOfWork,
	verifiers map[domain.Provider]domain.WebhookVerifier,
	ids application.IDGenerator,
	tel observability.Observability,
) *HandleWebhookUseCase {
	obs := application.NewInstruments(tel, paymentService)
	return &HandleWebhookUseCase{
		uow:       uow,
		verifiers: verifiers,
		settler:   newSettler(ids, tel),
		events:    obs.Metrics().Counter(observability.MWebhookEvents),
		obs:       obs,
	}
}

var _ application.UseCase[WebhookInput, *WebhookResult] = (*HandleWebhookUseCase)(nil)

func (uc *HandleWebhookUseCase) Execute(ctx context.Context, cmd WebhookInput) (_ *WebhookResult, err error) {
	ctx, run := uc.obs.Start(ctx, useCaseWebhook, "HandleWebhook",
		attribute.String("payment.provider", cmd.Provider),
	)
	defer func() { run.End(err) }()

	provider, err := domain.ParseProvider(cmd.Provider)
	if err != nil {
		run.Fail("PROVIDER_UNSUPPORTED")
		return nil, err
	}
	verifier, ok := uc.verifiers[provider]
	if !ok || verifier == nil {
		run.Fail("PROVIDER_UNSUPPORTED")
		return nil, fmt.Errorf("%w: %s has no webhook scheme", domain.ErrUnsupportedProvider, provider)
	}

	event, err := verifier.Verify(cmd.Payload, cmd.Signature)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedEvent) {
			run.Fail("EVENT_MALFORMED")
		} else {
			run.Fail("SIGNATURE_INVALID")
		}
		uc.count(provider, "unverified", OutcomeRejected)
		return nil, err
	}

	logger := run.Logger().With(
		observability.F("event_id", event.ID),
		observability.F("event_type", event.Type),
		observability.F("transaction_id", event.TransactionID),
	)
	run.Span().SetAttributes(
		attribute.String("webhook.event_id", event.ID),
		attribute.String("webhook.event_type", event.Type),
	)

	var outcome string
	switch event.Kind {
	case domain.EventSucceeded, domain.EventFailed:
		outcome, err = uc.apply(ctx, event, logger)
	case domain.EventIgnored:
		outcome = OutcomeIgnored
	default:
		outcome = OutcomeIgnored
	}
	if err != nil {
		run.Fail("APPLY_FAILED")
		uc.count(provider, event.Type, "error")
		return nil, err
	}

	run.Status(outcomeStatus(outcome))
	run.Annotate(
		observability.F("event_id", event.ID),
		observability.F("webhook_outcome", outcome),
	)
	uc.count(provider, event.Type, outcome)
	return &WebhookResult{EventID: event.ID, Outcome: outcome}, nil
}

func (uc *HandleWebhookUseCase) apply(ctx context.Context, event domain.WebhookEvent, logger observability.Logger) (string, error) {
	outcome := OutcomeApplied
	err := uc.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		p, err := repos.Payments.GetByTransactionIDForUpdate(ctx, event.TransactionID)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("webhook_payment_not_found")
			outcome = OutcomeUnmatched
			return nil
		}
		if err != nil {
			return err
		}

		switch p.Status {
		case domain.StatusPending:
		case domain.StatusSuccess:
			outcome = OutcomeDuplicate
			return nil
		case domain.StatusFailed:
			if event.Kind == domain.EventFailed {
				outcome = OutcomeDuplicate
				return nil
			}
			logger.Error("webhook_success_for_failed_payment", observability.F("payment_id", p.ID))
			outcome = OutcomeRejected
			return nil
		default:
			logger.Error("webhook_unknown_payment_status",
				observability.F("payment_id", p.ID),
				observability.F("status", string(p.Status)),
			)
			outcome = OutcomeRejected
			return nil
		}

		var aerr error
		if event.Kind == domain.EventSucceeded {
			aerr = uc.settler.succeed(ctx, repos, p, domain.SourceWebhook)
		} else {
			aerr = uc.settler.fail(ctx, repos, p, domain.SourceWebhook)
		}
		if aerr != nil && isBusinessRejection(aerr) {
			logger.Error("webhook_settlement_rejected",
				observability.F("payment_id", p.ID),
				observability.F("error", aerr.Error()),
			)
			outcome = OutcomeRejected
			return errRejected
		}
		return aerr
	})
	if errors.Is(err, errRejected) {
		return OutcomeRejected, nil
	}
	return outcome, err
}

// errRejected rolls back a partially applied settlement that can never succeed.
var errRejected = errors.New("webhook: settlement rejected")

func (uc *HandleWebhookUseCase) count(provider domain.Provider, eventType, outcome string) {
	uc.events.Add(1,
		observability.L("provider", string(provider)),
		observability.L("type", eventType),
		observability.L("outcome", outcome),
	)
}

func outcomeStatus(outcome string) string {
	switch outcome {
	case OutcomeApplied:
		return "APPLIED"
	case OutcomeDuplicate:
		return "DUPLICATE_DELIVERY"
	case OutcomeUnmatched:
		return "PAYMENT_NOT_FOUND"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeIgnored:
		return "EVENT_IGNORED"
	default:
		return "OK"
	}
}
