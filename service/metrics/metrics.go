package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec

	// Classifier Metrics
	classifierCallsTotal   *prometheus.CounterVec
	classifierCallDuration *prometheus.HistogramVec

	// Pipeline Metrics
	commandsTotal       *prometheus.CounterVec
	proposalsTotal      *prometheus.CounterVec
	confirmationsTotal  *prometheus.CounterVec
	cancellationsTotal  prometheus.Counter
	validationErrors    *prometheus.CounterVec
	buildErrors         *prometheus.CounterVec
	executionErrors     *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC read retries",
			},
			[]string{"method"},
		),

		// Classifier Metrics
		classifierCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifier_calls_total",
				Help: "Total number of intent classifier calls by status",
			},
			[]string{"status"},
		),
		classifierCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classifier_call_duration_seconds",
				Help:    "Duration of intent classifier calls in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"status"},
		),

		// Pipeline Metrics
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_commands_total",
				Help: "Total number of interpreted commands by resulting action",
			},
			[]string{"action"},
		),
		proposalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_proposals_total",
				Help: "Total number of proposed transactions by action and whether a prior pending transaction was replaced",
			},
			[]string{"action", "replaced"},
		),
		confirmationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_confirmations_total",
				Help: "Total number of confirmed transactions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		cancellationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_cancellations_total",
				Help: "Total number of cancelled pending transactions",
			},
		),
		validationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_validation_errors_total",
				Help: "Total number of command validation failures by kind",
			},
			[]string{"kind"},
		),
		buildErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_build_errors_total",
				Help: "Total number of transaction build failures by kind",
			},
			[]string{"kind"},
		),
		executionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_execution_errors_total",
				Help: "Total number of transaction execution failures by kind",
			},
			[]string{"kind"},
		),
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_execution_duration_seconds",
				Help:    "Duration of the build-sign-broadcast span in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"mode"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations by operation and status",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method, and status code",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published by subject and status",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records an RPC read retry.
func (m *Metrics) RecordRPCRetry(method string) {
	m.solanaRPCRetries.WithLabelValues(method).Inc()
}

// RecordClassifierCall records an intent classifier call with its duration.
func (m *Metrics) RecordClassifierCall(status string, duration float64) {
	m.classifierCallsTotal.WithLabelValues(status).Inc()
	m.classifierCallDuration.WithLabelValues(status).Observe(duration)
}

// RecordCommand records an interpreted command by its resulting action.
func (m *Metrics) RecordCommand(action string) {
	m.commandsTotal.WithLabelValues(action).Inc()
}

// RecordProposal records a proposed transaction.
func (m *Metrics) RecordProposal(action string, replaced bool) {
	m.proposalsTotal.WithLabelValues(action, strconv.FormatBool(replaced)).Inc()
}

// RecordConfirmation records a confirmed transaction and its outcome
// ("executed" or "failed").
func (m *Metrics) RecordConfirmation(action, outcome string) {
	m.confirmationsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordCancellation records a cancelled pending transaction.
func (m *Metrics) RecordCancellation() {
	m.cancellationsTotal.Inc()
}

// RecordValidationError records a validation failure by kind.
func (m *Metrics) RecordValidationError(kind string) {
	m.validationErrors.WithLabelValues(kind).Inc()
}

// RecordBuildError records a build failure by kind.
func (m *Metrics) RecordBuildError(kind string) {
	m.buildErrors.WithLabelValues(kind).Inc()
}

// RecordExecutionError records an execution failure by kind.
func (m *Metrics) RecordExecutionError(kind string) {
	m.executionErrors.WithLabelValues(kind).Inc()
}

// RecordExecutionDuration records the duration of a build-sign-broadcast span.
func (m *Metrics) RecordExecutionDuration(mode string, duration float64) {
	m.executionDuration.WithLabelValues(mode).Observe(duration)
}

// RecordDBQuery records a database query with its duration and outcome.
func (m *Metrics) RecordDBQuery(operation string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := strconv.Itoa(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
}

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}
