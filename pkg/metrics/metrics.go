package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transaction controller (TC) metrics.
	TxIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aruna_tx_is_leader",
			Help: "Whether this node is the raft leader for the transaction log (1 = leader, 0 = follower)",
		},
	)

	TxCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aruna_tx_commits_total",
			Help: "Total write requests submitted to the transaction controller by outcome",
		},
		[]string{"kind", "outcome"},
	)

	TxApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aruna_tx_apply_duration_seconds",
			Help:    "Time taken for a write request to be applied through raft",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Universe index (UI) metrics.
	UIProjectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aruna_universe_project_duration_seconds",
			Help:    "Time taken to project a node into the universe index",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Authorization evaluator (AZ) metrics.
	AZDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aruna_authz_decisions_total",
			Help: "Total authorization decisions by result",
		},
		[]string{"result"},
	)

	AZDecisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aruna_authz_decision_duration_seconds",
			Help:    "Time taken to evaluate an authorization decision",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Event bus (EB) metrics.
	EBDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aruna_eventbus_deliveries_total",
			Help: "Total event deliveries attempted by consumer and result",
		},
		[]string{"consumer", "result"},
	)

	EBConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aruna_eventbus_consumer_lag",
			Help: "Difference between the last committed log index and a consumer's acked cursor",
		},
		[]string{"consumer"},
	)

	EBOverflowDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aruna_eventbus_overflow_drops_total",
			Help: "Total log indices dropped from a consumer's overflow queue after exceeding stream_buffer_max",
		},
		[]string{"consumer"},
	)

	// Hook engine (HE) metrics.
	HEQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aruna_hooks_queue_depth",
			Help: "Number of hook jobs currently queued for dispatch to a worker",
		},
	)

	HEExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aruna_hooks_executions_total",
			Help: "Total hook executions by state",
		},
		[]string{"state"},
	)

	HEExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aruna_hooks_execution_duration_seconds",
			Help:    "Time taken to run a hook job to completion",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Request layer (RL) metrics — the gRPC-facing surface.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aruna_requests_total",
			Help: "Total requests handled by the request layer by method and status",
		},
		[]string{"method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aruna_request_duration_seconds",
			Help:    "Request layer handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(TxIsLeader)
	prometheus.MustRegister(TxCommitsTotal)
	prometheus.MustRegister(TxApplyDuration)
	prometheus.MustRegister(UIProjectDuration)
	prometheus.MustRegister(AZDecisionsTotal)
	prometheus.MustRegister(AZDecisionDuration)
	prometheus.MustRegister(EBDeliveriesTotal)
	prometheus.MustRegister(EBConsumerLag)
	prometheus.MustRegister(EBOverflowDropsTotal)
	prometheus.MustRegister(HEQueueDepth)
	prometheus.MustRegister(HEExecutionsTotal)
	prometheus.MustRegister(HEExecutionDuration)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
