package httppresentation

import (
	"context"
	"net/http"
	"strings"
	"time"

	appOrder "github.com/Zhima-Mochi/minishop-settlement/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-settlement/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// UseCases are the application entry points served over HTTP.
type UseCases struct {
	CreateOrder    *appOrder.CreateOrderUseCase
	ListOrders     *appOrder.ListOrdersUseCase
	GetOrder       *appOrder.GetOrderUseCase
	CreatePayment  *appPayment.CreatePaymentUseCase
	ConfirmPayment *appPayment.ConfirmPaymentUseCase
	GetPayment     *appPayment.GetPaymentUseCase
	ListPayments   *appPayment.ListPaymentsUseCase
	HandleWebhook  *appPayment.HandleWebhookUseCase
}

type Options struct {
	// RequestTimeout bounds every request context; zero disables it.
	RequestTimeout time.Duration
	// Metrics serves the Prometheus exposition on GET /metrics when set.
	Metrics http.Handler
	// Ready reports backing-store health for GET /health; nil means always healthy.
	Ready func(ctx context.Context) error
}

type Handler struct {
	uc   UseCases
	opts Options
	log  observability.Logger
	tel  observability.Observability
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerUserID         = "X-User-ID"
	headerUserRole       = "X-User-Role"
	headerSignature      = "Stripe-Signature"
	maxWebhookBody       = 1 << 20
)

func NewHandler(uc UseCases, opts Options, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		uc:   uc,
		opts: opts,
		log:  tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:  tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if h.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(h.opts.RequestTimeout))
	}

	// Each route: Trace → ObservabilityMiddleware (request logger + metrics) → Access log → Handler
	h.handle(r, http.MethodGet, "/health", http.HandlerFunc(h.handleHealth))

	h.handle(r, http.MethodPost, "/orders", requireActor(h.handleCreateOrder))
	h.handle(r, http.MethodGet, "/orders", requireActor(h.handleListOrders))
	h.handle(r, http.MethodGet, "/orders/{orderID}", requireActor(h.handleGetOrder))
	h.handle(r, http.MethodPost, "/payments", requireActor(h.handleCreatePayment))
	h.handle(r, http.MethodGet, "/payments", requireActor(h.handleListPayments))
	h.handle(r, http.MethodGet, "/payments/{paymentID}", requireActor(h.handleGetPayment))
	h.handle(r, http.MethodPost, "/payments/{paymentID}/confirm", requireActor(h.handleConfirmPayment))

	// Webhooks authenticate by signature, not by caller identity.
	h.handle(r, http.MethodPost, "/webhooks/{provider}", http.HandlerFunc(h.handleWebhook))

	if h.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.Metrics)
	}
	return r
}

func (h *Handler) handle(r chi.Router, method, pattern string, handler http.Handler) {
	route := method + " " + pattern
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			h.tel,
		)(
			h.withAccessLog(handler),
		),
	)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("health_check_failed", observability.F("error", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("minishop.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
