// Package metrics registers the Prometheus series named in spec §4.11 and
// §6.11, following the promauto registration idiom.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every gateway metric, grouped by concern.
type Registry struct {
	Registerer prometheus.Registerer

	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDurationMS  *prometheus.HistogramVec
	HTTPRequestErrorsTotal *prometheus.CounterVec

	JobsCreatedTotal *prometheus.CounterVec
	JobsFailedTotal  *prometheus.CounterVec

	UnderwriteDurationSeconds *prometheus.HistogramVec
	ParserSeconds             *prometheus.HistogramVec
	CollateralSeconds         *prometheus.HistogramVec
	LLMSeconds                *prometheus.HistogramVec

	WebhookAttemptsTotal *prometheus.CounterVec
	WebhookFailuresTotal *prometheus.CounterVec

	QueueBacklog *prometheus.GaugeVec
}

// New registers and returns the gateway's metrics under prefix (spec
// §6.11's PROMETHEUS_PREFIX) against reg. A nil reg registers against
// prometheus.DefaultRegisterer; tests pass a fresh prometheus.NewRegistry()
// so repeated construction never panics on duplicate registration.
func New(prefix string, reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	name := func(s string) string { return prefix + "_" + s }

	return &Registry{
		Registerer: reg,

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name("http_requests_total"),
			Help: "Total HTTP requests handled.",
		}, []string{"method", "path", "status_code", "tenant_id"}),

		HTTPRequestDurationMS: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("http_request_duration_ms"),
			Help:    "HTTP request duration in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method", "path", "status_code", "tenant_id"}),

		HTTPRequestErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name("http_request_errors_total"),
			Help: "Total HTTP requests resolving to a 5xx status.",
		}, []string{"method", "path", "tenant_id"}),

		JobsCreatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name("jobs_created_total"),
			Help: "Total underwriting jobs admitted.",
		}, []string{"tenant_id"}),

		JobsFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name("jobs_failed_total"),
			Help: "Total underwriting jobs that ended in a failed status.",
		}, []string{"tenant_id"}),

		UnderwriteDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("underwrite_duration_seconds"),
			Help:    "Duration of each underwrite pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tenant_id", "stage"}),

		ParserSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("parser_seconds"),
			Help:    "Duration of bank-statement parser invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tenant_id"}),

		CollateralSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("collateral_seconds"),
			Help:    "Duration of collateral valuation calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tenant_id"}),

		LLMSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("llm_seconds"),
			Help:    "Duration of LLM memo/decision calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tenant_id"}),

		WebhookAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name("webhook_attempts_total"),
			Help: "Total webhook delivery attempts.",
		}, []string{"tenant_id", "status"}),

		WebhookFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: name("webhook_failures_total"),
			Help: "Total webhook deliveries that exhausted their retry budget.",
		}, []string{"tenant_id"}),

		QueueBacklog: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: name("queue_backlog"),
			Help: "Outstanding work-queue notifications.",
		}, []string{"queue"}),
	}
}
