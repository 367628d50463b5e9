// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"}, // "success", "partial", "failed", "cancelled"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Wall-clock duration of a complete pipeline run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	RunHealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_run_health_score",
			Help: "Derived health score of the most recent run (0-100)",
		},
	)

	// Stage job metrics
	StageJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_jobs_total",
			Help: "Total stage jobs dispatched by stage and result",
		},
		[]string{"stage", "result"}, // result: "success", "partial", "failed"
	)

	StageJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_job_duration_seconds",
			Help:    "Duration of individual stage jobs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		},
		[]string{"stage"},
	)

	StageActiveJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_stage_active_jobs",
			Help: "Number of jobs currently executing per stage",
		},
		[]string{"stage"},
	)

	StageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_retries_total",
			Help: "Total retry decisions issued by the dispatcher per stage",
		},
		[]string{"stage"},
	)

	// Metadata store metrics
	StoreTxnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_txn_duration_seconds",
			Help:    "Duration of document store transactions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_txn_conflict_retries_total",
			Help: "Total transaction retries caused by write conflicts",
		},
	)

	StoreUnavailable = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_unavailable_total",
			Help: "Total transactions abandoned after conflict retries were exhausted",
		},
	)

	StoreGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Total value-log garbage collection runs",
		},
	)

	CatalogTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_status_transitions_total",
			Help: "Total video status transitions committed by the catalog",
		},
		[]string{"from", "to"},
	)

	CatalogUpserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_video_upserts_total",
			Help: "Total video upserts (including idempotent re-discoveries)",
		},
	)

	// Budget and quota ledger metrics
	LedgerChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_checks_total",
			Help: "Total budget/quota checks by service and decision",
		},
		[]string{"service", "decision"}, // decision: "allow", "deny"
	)

	LedgerSpendUSD = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_daily_spend_usd",
			Help: "Recorded spend for the current day per service",
		},
		[]string{"service"},
	)

	LedgerThresholdCrossings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_threshold_crossings_total",
			Help: "Budget threshold crossings by level",
		},
		[]string{"level"}, // "warning", "critical"
	)

	// Alert sink metrics
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Alert emissions by type and outcome",
		},
		[]string{"alert_type", "outcome"}, // outcome: "sent", "throttled", "failed"
	)

	// DLQ metrics
	DLQEntriesAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_entries_added_total",
			Help: "Total entries enqueued to the dead-letter queue",
		},
		[]string{"job_type", "severity"},
	)

	DLQReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_replays_total",
			Help: "Total DLQ replay attempts by outcome",
		},
		[]string{"outcome"}, // "requeued", "failed"
	)

	DLQDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_depth",
			Help: "Current number of entries in the dead-letter queue",
		},
	)

	// External provider metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Outbound provider requests by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: "success", "error", "rate_limited", "circuit_open"
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Latency of outbound provider requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "provider_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	TranscriptionPollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcription_poll_attempts",
			Help:    "Poll attempts needed for a transcription job to settle",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 60},
		},
	)

	// Index sink metrics
	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_writes_total",
			Help: "Chunk writes per sink and outcome",
		},
		[]string{"sink", "outcome"}, // sink: "semantic", "keyword", "structured"
	)

	SinkWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sink_write_duration_seconds",
			Help:    "Duration of sink write batches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	SinkHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sink_healthy",
			Help: "Cached sink health (1=healthy, 0=unhealthy)",
		},
		[]string{"sink"},
	)

	ChunksIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunks_indexed_total",
			Help: "Total chunks written across all sinks, counted once per chunk",
		},
	)

	ChunksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunks_skipped_total",
			Help: "Chunks skipped because the structured sink already holds them",
		},
	)

	// Retrieval metrics
	RetrievalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_requests_total",
			Help: "Retrieval requests by routing strategy and status",
		},
		[]string{"strategy", "status"}, // status: "success", "no_sources_available", "error"
	)

	RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "End-to-end retrieval latency including fusion and policy",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5},
		},
	)

	RetrievalSourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_source_duration_seconds",
			Help:    "Per-source query latency during fan-out",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2},
		},
		[]string{"source"},
	)

	RetrievalSourceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_source_errors_total",
			Help: "Per-source failures during fan-out",
		},
		[]string{"source", "reason"}, // reason: "timeout", "error", "unavailable"
	)

	RetrievalFusedResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_fused_results",
			Help:    "Number of results returned after fusion and policy",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// Policy enforcement metrics
	PolicyViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_violations_total",
			Help: "Policy violations detected by kind and action taken",
		},
		[]string{"kind", "action"}, // kind: "channel", "age", "email", "phone", ...
	)

	// Embedding cache metrics
	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embedding_cache_hits_total",
			Help: "Query embedding cache hits",
		},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embedding_cache_misses_total",
			Help: "Query embedding cache misses",
		},
	)

	// Event bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published to the bus by topic",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Domain events consumed from the bus by topic and outcome",
		},
		[]string{"topic", "outcome"}, // outcome: "processed", "failed", "poison"
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Current number of WebSocket feed subscribers",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_messages_sent_total",
			Help: "Total messages broadcast to WebSocket subscribers",
		},
	)
)

// RecordRun records the outcome and duration of a complete pipeline run.
func RecordRun(outcome string, duration time.Duration, healthScore float64) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(duration.Seconds())
	RunHealthScore.Set(healthScore)
}

// RecordStageJob records a completed stage job.
func RecordStageJob(stage, result string, duration time.Duration) {
	StageJobsTotal.WithLabelValues(stage, result).Inc()
	StageJobDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageRetry records a dispatcher retry decision for a stage.
func RecordStageRetry(stage string) {
	StageRetries.WithLabelValues(stage).Inc()
}

// RecordStoreTxn records a document store transaction.
func RecordStoreTxn(operation string, duration time.Duration) {
	StoreTxnDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTransition records a committed video status transition.
func RecordTransition(from, to string) {
	CatalogTransitions.WithLabelValues(from, to).Inc()
}

// RecordLedgerCheck records a budget/quota check decision.
func RecordLedgerCheck(service string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	LedgerChecks.WithLabelValues(service, decision).Inc()
}

// RecordAlert records an alert emission outcome.
func RecordAlert(alertType, outcome string) {
	AlertsTotal.WithLabelValues(alertType, outcome).Inc()
}

// RecordDLQEntry records an entry added to the dead-letter queue.
func RecordDLQEntry(jobType, severity string) {
	DLQEntriesAdded.WithLabelValues(jobType, severity).Inc()
	DLQDepth.Inc()
}

// RecordDLQReplay records a replay attempt outcome.
func RecordDLQReplay(requeued bool) {
	if requeued {
		DLQReplays.WithLabelValues("requeued").Inc()
		DLQDepth.Dec()
		return
	}
	DLQReplays.WithLabelValues("failed").Inc()
}

// RecordProviderRequest records an outbound provider call.
func RecordProviderRequest(provider, outcome string, duration time.Duration) {
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordSinkWrite records a sink write batch.
func RecordSinkWrite(sink string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	SinkWrites.WithLabelValues(sink, outcome).Inc()
	SinkWriteDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

// SetSinkHealth updates the cached health gauge for a sink.
func SetSinkHealth(sink string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	SinkHealthy.WithLabelValues(sink).Set(v)
}

// RecordRetrieval records a completed retrieval request.
func RecordRetrieval(strategy, status string, duration time.Duration, resultCount int) {
	RetrievalRequests.WithLabelValues(strategy, status).Inc()
	RetrievalDuration.Observe(duration.Seconds())
	RetrievalFusedResults.Observe(float64(resultCount))
}

// RecordSourceQuery records a single source's fan-out outcome.
func RecordSourceQuery(source string, duration time.Duration, reason string) {
	RetrievalSourceDuration.WithLabelValues(source).Observe(duration.Seconds())
	if reason != "" {
		RetrievalSourceErrors.WithLabelValues(source, reason).Inc()
	}
}

// RecordPolicyViolation records a detected policy violation.
func RecordPolicyViolation(kind, action string) {
	PolicyViolations.WithLabelValues(kind, action).Inc()
}

// RecordEventPublished records a domain event published to the bus.
func RecordEventPublished(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventConsumed records a domain event consumed from the bus.
func RecordEventConsumed(topic, outcome string) {
	EventsConsumed.WithLabelValues(topic, outcome).Inc()
}

// RecordAPIRequest records an API request with status code and duration.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetCircuitBreakerState updates the breaker state gauge for a provider.
// State values follow gobreaker: 0 closed, 1 half-open, 2 open.
func SetCircuitBreakerState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
