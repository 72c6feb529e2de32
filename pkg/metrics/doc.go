/*
Package metrics provides Prometheus metrics collection and exposition for
the Aruna core: TC commits, AZ decisions, EB delivery/lag, HE queue depth
and execution outcomes, and RL request counts/latency. Metrics are exposed
via an HTTP endpoint for scraping by Prometheus servers.

# Metrics Catalog

Transaction controller (TC):

  - aruna_tx_is_leader: gauge, 1 if this node holds raft leadership
  - aruna_tx_commits_total{kind,outcome}: counter, write requests submitted by outcome (applied/rejected)
  - aruna_tx_apply_duration_seconds: histogram, time for a write request to apply through raft

Universe index (UI):

  - aruna_universe_project_duration_seconds: histogram, time to project a node

Authorization evaluator (AZ):

  - aruna_authz_decisions_total{result}: counter, decisions by result (allow/deny)
  - aruna_authz_decision_duration_seconds: histogram, decision evaluation time

Event bus (EB):

  - aruna_eventbus_deliveries_total{consumer,result}: counter, delivery attempts (sent/blocked)
  - aruna_eventbus_consumer_lag{consumer}: gauge, committed index minus acked cursor
  - aruna_eventbus_overflow_drops_total{consumer}: counter, indices dropped past stream_buffer_max

Hook engine (HE):

  - aruna_hooks_queue_depth: gauge, jobs buffered ahead of the worker pool
  - aruna_hooks_executions_total{state}: counter, completed jobs by terminal state
  - aruna_hooks_execution_duration_seconds: histogram, job run time

Request layer (RL):

  - aruna_requests_total{method,status}: counter
  - aruna_request_duration_seconds{method}: histogram

# Usage

Counters and histograms are updated inline at their call site (authz.Authorize,
txcontroller.Controller.Submit, eventbus.Bus, hooks.Engine.runJob) using the
Timer helper:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.TxApplyDuration)

Gauges that reflect polled state rather than an event (TC leadership, HE
queue depth) are refreshed by Collector on a ticker, grounded on the same
ticker-driven shape used elsewhere in this codebase for periodic upkeep.

Expose the registry:

	http.Handle("/metrics", metrics.Handler())

# Health

HealthChecker tracks liveness/readiness of components registered by name
(RegisterComponent/UpdateComponent); GetReadiness treats "tc", "recordstore",
and "eventbus" as critical. HealthHandler/ReadyHandler/LivenessHandler expose
these over HTTP for the same process that serves /metrics; pkg/rlserver
exposes the equivalent check over gRPC health/v1 for the RPC surface.
*/
package metrics
