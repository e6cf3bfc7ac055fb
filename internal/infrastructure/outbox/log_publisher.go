package outbox

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability/logctx"
)

// LogPublisher writes each message to the log. It stands in for a broker when none is configured.
type LogPublisher struct {
	log observability.Logger
}

func NewLogPublisher(logger observability.Logger) *LogPublisher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogPublisher{log: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, m domoutbox.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logctx.FromOr(ctx, p.log).Info("domain_event",
		observability.F("event", m.Name),
		observability.F("key", m.Key),
		observability.F("occurred_at", m.OccurredAt),
		observability.F("payload", string(m.Payload)),
	)
	return nil
}

var _ domoutbox.Publisher = (*LogPublisher)(nil)
