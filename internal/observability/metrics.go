package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MPaymentSettlements      MetricKey = "payment_settlements_total"
	MWebhookEvents           MetricKey = "webhook_events_total"
	MOutboxPublished         MetricKey = "outbox_published_total"
	MGatewayCircuitState     MetricKey = "gateway_circuit_state"
)

// MetricSpec describes how a metric key is exposed by a backend.
type MetricSpec struct {
	Key    MetricKey
	Help   string
	Labels []string
}

// Counters lists every counter the service reports.
var Counters = []MetricSpec{
	{MUsecaseRequests, "Total number of use case invocations.", []string{"use_case", "outcome"}},
	{MHTTPRequests, "Total number of HTTP requests.", []string{"method", "route", "status"}},
	{MExternalRequests, "Calls to external peers (gateways, brokers).", []string{"peer", "endpoint", "outcome"}},
	{MPaymentSettlements, "Payment status transitions applied.", []string{"provider", "source", "status"}},
	{MWebhookEvents, "Webhook deliveries by outcome.", []string{"provider", "type", "outcome"}},
	{MOutboxPublished, "Outbox messages handed to the publisher.", []string{"event", "outcome"}},
}

// Histograms lists every latency histogram the service reports.
var Histograms = []MetricSpec{
	{MUsecaseDuration, "Duration of use case execution in seconds.", []string{"use_case"}},
	{MHTTPRequestDuration, "Duration of HTTP requests in seconds.", []string{"method", "route", "status"}},
	{MExternalRequestDuration, "Duration of external calls in seconds.", []string{"peer", "endpoint"}},
}

// Gauges lists every gauge the service reports.
var Gauges = []MetricSpec{
	{MGatewayCircuitState, "Gateway circuit breaker state (0=closed, 1=open, 2=half-open).", []string{"provider"}},
}
