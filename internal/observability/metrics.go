package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: all metrics are registered globally, so every binary exposes the full
// set (edge metrics stay at zero in the control plane and vice versa).

// namespace defines the global prefix for all metrics (e.g., bifrost_...).
const namespace = "bifrost"

// lowLatencyBuckets resolves the sub-5ms range the edge operates in.
// Range: 1ms to 500ms.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .015, .020, .025, .030, .050, .100, .500}

var (
	// -------------------------------------------------------------------------
	// EDGE (request/response coordinator)
	// -------------------------------------------------------------------------

	// EdgeRequestPhaseDuration measures the request phase (token, rule, decide, rewrite).
	// Metric: bifrost_edge_request_phase_seconds
	EdgeRequestPhaseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "edge",
		Name:      "request_phase_seconds",
		Help:      "Time spent deciding and rewriting an experiment request",
		Buckets:   lowLatencyBuckets,
	})

	// EdgeDecisionsTotal counts assignments by variant and visitor novelty.
	// Metric: bifrost_edge_decisions_total
	EdgeDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "edge",
		Name:      "decisions_total",
		Help:      "Experiment decisions by variant and visitor type",
	}, []string{"variant", "visitor"})

	// EdgeFailOpenTotal counts requests forwarded unmodified because no rule was available.
	EdgeFailOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "edge",
		Name:      "fail_open_total",
		Help:      "Requests passed through without a decision, by failure kind",
	}, []string{"reason"})

	// EdgeCarrierMissingTotal counts responses that reached the response phase without a decision.
	EdgeCarrierMissingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "edge",
		Name:      "carrier_missing_total",
		Help:      "Responses without a decision carrier",
	})

	// EdgePassthroughTotal counts requests outside every experiment scope.
	EdgePassthroughTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "edge",
		Name:      "passthrough_total",
		Help:      "Requests proxied without entering the experiment protocol",
	})

	// EdgeOriginErrorsTotal counts failed origin round trips.
	EdgeOriginErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "edge",
		Name:      "origin_errors_total",
		Help:      "Origin fetches that failed at the transport level",
	})

	// -------------------------------------------------------------------------
	// PROVIDERS
	// -------------------------------------------------------------------------

	// ProviderFetchDuration measures backend latency per provider.
	// Metric: bifrost_provider_fetch_seconds
	ProviderFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "fetch_seconds",
		Help:      "Configuration backend fetch latency",
		Buckets:   lowLatencyBuckets,
	}, []string{"provider"})

	// ProviderFetchTotal counts fetches by outcome (ok, missing, parse, fetch).
	ProviderFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "fetch_total",
		Help:      "Configuration backend fetches by result",
	}, []string{"provider", "result"})

	// ProviderBreakerState reports the circuit state (0 closed, 1 half-open, 2 open).
	ProviderBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
	}, []string{"provider"})

	// -------------------------------------------------------------------------
	// RULE CACHE (otter)
	// -------------------------------------------------------------------------

	RuleCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rule_cache",
		Name:      "hits_total",
		Help:      "Fresh rule cache hits",
	})

	RuleCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rule_cache",
		Name:      "misses_total",
		Help:      "Rule cache misses and stale reads that triggered a fetch",
	})

	// RuleCacheStaleServed counts stale rules served after a failed refresh.
	RuleCacheStaleServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rule_cache",
		Name:      "stale_served_total",
		Help:      "Stale rules served because the refresh failed",
	})

	// RuleCacheSharedFetches counts callers that joined an in-flight refresh.
	RuleCacheSharedFetches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rule_cache",
		Name:      "shared_fetches_total",
		Help:      "Lookups that shared an in-flight backend fetch",
	})

	// otter tracks item count, not byte size.
	RuleCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rule_cache",
		Name:      "items_count",
		Help:      "Current number of rules in the cache",
	})

	// -------------------------------------------------------------------------
	// CONTROL PLANE (HTTP)
	// -------------------------------------------------------------------------

	// ControlPlaneReqDuration measures the latency of HTTP requests.
	// Metric: bifrost_control_plane_http_handling_seconds
	ControlPlaneReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "control_plane",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in Control Plane",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// ControlPlaneReqTotal counts the total number of HTTP requests.
	// Metric: bifrost_control_plane_http_requests_total
	ControlPlaneReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control_plane",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in Control Plane",
	}, []string{"method", "path", "code"})

	// ControlPlanePublishTotal counts post-write document pushes to the KV store.
	ControlPlanePublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control_plane",
		Name:      "publish_total",
		Help:      "Document pushes triggered by rule writes",
	}, []string{"status"}) // success, fail

	// -------------------------------------------------------------------------
	// SYNCER
	// -------------------------------------------------------------------------

	// SyncerRunDuration measures a full reconciliation pass.
	// Metric: bifrost_syncer_run_duration_seconds
	SyncerRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "run_duration_seconds",
		Help:      "Time taken to read the rule table and publish it everywhere",
		Buckets:   prometheus.DefBuckets,
	})

	SyncerPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "publish_total",
		Help:      "Publisher runs by target and status",
	}, []string{"publisher", "status"}) // success, fail

	// SyncerRulesPublished is the number of rules in the last published document.
	SyncerRulesPublished = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "rules_published",
		Help:      "Rules contained in the last successfully read document",
	})
)
