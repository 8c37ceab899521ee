package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Payment lifecycle metrics
	PaymentsCreated    *prometheus.CounterVec
	PaymentTransitions *prometheus.CounterVec
	PaymentsCompleted  *prometheus.CounterVec
	PaymentsFailed     *prometheus.CounterVec
	PaymentsCancelled  prometheus.Counter
	PaymentsExpired    prometheus.Counter
	PaymentErrors      *prometheus.CounterVec
	PaymentAmount      *prometheus.HistogramVec
	Refunds            *prometheus.CounterVec

	// Gateway metrics
	GatewayAttempts *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec

	// Worker metrics
	WorkerMessagesProcessed  *prometheus.CounterVec
	WorkerProcessingDuration *prometheus.HistogramVec
	ExpirySweeps             *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		PaymentsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_created_total",
				Help:      "Total number of payments created by method and currency",
			},
			[]string{"method", "currency"},
		),
		PaymentTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_transitions_total",
				Help:      "Total number of payment status transitions",
			},
			[]string{"from", "to"},
		),
		PaymentsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_completed_total",
				Help:      "Total number of successfully charged payments",
			},
			[]string{"method", "currency"},
		),
		PaymentsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_failed_total",
				Help:      "Total number of payments that exhausted their attempts",
			},
			[]string{"method"},
		),
		PaymentsCancelled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_cancelled_total",
				Help:      "Total number of cancelled payments",
			},
		),
		PaymentsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_expired_total",
				Help:      "Total number of expired payments",
			},
		),
		PaymentErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_errors_total",
				Help:      "Total number of failed charge attempts",
			},
			[]string{"terminal"},
		),
		PaymentAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payment_amount",
				Help:      "Distribution of created payment amounts",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
			[]string{"currency"},
		),
		Refunds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refunds_total",
				Help:      "Total number of refunds by outcome",
			},
			[]string{"status"},
		),
		GatewayAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_attempts_total",
				Help:      "Total number of gateway calls by operation and outcome",
			},
			[]string{"gateway", "operation", "outcome"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_duration_seconds",
				Help:      "Gateway call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"gateway", "operation"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		WorkerMessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_messages_processed_total",
				Help:      "Total number of worker messages processed",
			},
			[]string{"stream", "status"},
		),
		WorkerProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_processing_duration_seconds",
				Help:      "Worker batch processing duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"stream"},
		),
		ExpirySweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expiry_sweeps_total",
				Help:      "Total number of expiry sweeps by result",
			},
			[]string{"result"},
		),
	}

	// Register all collectors
	reg.MustRegister(
		m.PaymentsCreated,
		m.PaymentTransitions,
		m.PaymentsCompleted,
		m.PaymentsFailed,
		m.PaymentsCancelled,
		m.PaymentsExpired,
		m.PaymentErrors,
		m.PaymentAmount,
		m.Refunds,
		m.GatewayAttempts,
		m.GatewayDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.WorkerMessagesProcessed,
		m.WorkerProcessingDuration,
		m.ExpirySweeps,
	)

	return m
}
