// Package outbox moves committed outbox messages to a Publisher.
package outbox

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	domoutbox "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/minishop-settlement/internal/presentation/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const componentOutbox = "outbox"

type RelayOptions struct {
	Interval time.Duration
	Batch    int
}

// Relay polls unpublished messages and hands them to the publisher in
// occurrence order. Delivery is at-least-once: a message is marked only after
// the publisher accepted it, and a batch stops at the first failure. Run one
// relay per database.
type Relay struct {
	uow       application.UnitOfWork
	pub       domoutbox.Publisher
	tracer    observability.Tracer
	log       observability.Logger
	published observability.Counter // outbox_published_total{event,outcome}
	interval  time.Duration
	batch     int

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewRelay(uow application.UnitOfWork, pub domoutbox.Publisher, tel observability.Observability, opts RelayOptions) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 100
	}
	return &Relay{
		uow:       uow,
		pub:       pub,
		tracer:    tel.Tracer(),
		log:       tel.Logger().With(observability.F("component", componentOutbox)),
		published: tel.Metrics().Counter(observability.MOutboxPublished),
		interval:  opts.Interval,
		batch:     opts.Batch,
		done:      make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called or ctx ends.
func (r *Relay) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		r.cancel = cancel
		go r.loop(bg)
		r.log.Info("outbox_relay_started",
			observability.F("interval", r.interval.String()),
			observability.F("batch", r.batch),
		)
	})
}

// Stop cancels the loop and waits for the in-flight batch, bounded by ctx.
func (r *Relay) Stop(ctx context.Context) {
	r.stopOnce.Do(func() {
		if r.cancel == nil {
			return
		}
		r.cancel()
		select {
		case <-r.done:
			r.log.Info("outbox_relay_stopped")
		case <-ctx.Done():
			r.log.Warn("outbox_relay_stop_timeout", observability.F("error", ctx.Err()))
		}
	})
}

func (r *Relay) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("outbox_relay_panic",
				observability.F("panic", p),
				observability.F("stack", string(debug.Stack())),
			)
		}
	}()
	// Drain while full batches keep coming.
	for ctx.Err() == nil {
		n, err := r.Flush(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.log.Warn("outbox_flush_failed", observability.F("error", err))
			}
			return
		}
		if n < r.batch {
			return
		}
	}
}

// Flush publishes one batch and reports how many messages were marked published.
func (r *Relay) Flush(ctx context.Context) (n int, err error) {
	ctx, span := r.tracer.Start(ctx, "Outbox.Flush", attribute.Int("outbox.batch", r.batch))
	defer func() {
		span.SetAttributes(attribute.Int("outbox.published", n))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "PUBLISH_FAILED")
		}
		span.End()
	}()

	var pending []domoutbox.Message
	err = r.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		var perr error
		pending, perr = repos.Outbox.Pending(ctx, r.batch)
		return perr
	})
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// Publishing happens outside any unit of work so a slow broker never
	// holds store locks.
	var (
		sent   []string
		pubErr error
	)
	for _, m := range pending {
		mctx := workerpresentation.WithEventContext(ctx, r.log, map[string]string{
			"event_id": m.ID,
			"event":    m.Name,
		})
		logger := logctx.FromOr(mctx, r.log)

		if err := r.pub.Publish(mctx, m); err != nil {
			r.published.Add(1, observability.L("event", m.Name), observability.L("outcome", "error"))
			logger.Warn("outbox_publish_failed", observability.F("error", err))
			pubErr = fmt.Errorf("outbox: publish %s: %w", m.ID, err)
			break
		}
		r.published.Add(1, observability.L("event", m.Name), observability.L("outcome", "success"))
		logger.Debug("outbox_message_published")
		sent = append(sent, m.ID)
	}
	if len(sent) == 0 {
		return 0, pubErr
	}

	// A failure here leaves the sent messages pending; they are published again.
	now := time.Now()
	err = r.uow.WithinTx(ctx, func(ctx context.Context, repos application.Repositories) error {
		for _, id := range sent {
			if err := repos.Outbox.MarkPublished(ctx, id, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("outbox: mark published: %w", err)
	}
	return len(sent), pubErr
}
