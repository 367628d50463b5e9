// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/scriptorium/internal/audit"
	"github.com/tomtom215/scriptorium/internal/dlq"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/pipeline"
	"github.com/tomtom215/scriptorium/internal/policy"
	"github.com/tomtom215/scriptorium/internal/retrieval"
	"github.com/tomtom215/scriptorium/internal/sinks"
	"github.com/tomtom215/scriptorium/internal/validation"
)

// maxRetrieveBody bounds request bodies on the retrieve endpoint.
const maxRetrieveBody = 64 * 1024

// Pinger is the health probe every sink exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Catalog is the slice of the catalog the API reads.
type Catalog interface {
	CountByStatus(ctx context.Context) (map[models.VideoStatus]int, error)
}

// QuotaReader exposes ledger state for the status endpoint.
type QuotaReader interface {
	Snapshot(ctx context.Context) ([]models.QuotaSnapshot, error)
}

// RunTrigger starts an out-of-schedule pipeline run.
type RunTrigger interface {
	TriggerNow(ctx context.Context) (models.RunSummary, error)
}

// RunReporter exposes the last completed run. Satisfied by the observer.
type RunReporter interface {
	LastRun() (models.RunSummary, bool)
}

// Handler carries the dependencies behind the HTTP surface.
type Handler struct {
	engine   *retrieval.Engine
	enforcer *policy.Enforcer
	audits   *audit.Store
	queue    *dlq.Queue
	replayer *pipeline.Replayer
	trigger  RunTrigger
	catalog  Catalog
	quotas   QuotaReader
	runs     RunReporter
	probes   map[string]Pinger
}

// NewHandler wires the handler. Probes maps sink name to its health check.
func NewHandler(
	engine *retrieval.Engine,
	enforcer *policy.Enforcer,
	audits *audit.Store,
	queue *dlq.Queue,
	replayer *pipeline.Replayer,
	trigger RunTrigger,
	catalog Catalog,
	quotas QuotaReader,
	runs RunReporter,
	probes map[string]Pinger,
) *Handler {
	return &Handler{
		engine:   engine,
		enforcer: enforcer,
		audits:   audits,
		queue:    queue,
		replayer: replayer,
		trigger:  trigger,
		catalog:  catalog,
		quotas:   quotas,
		runs:     runs,
		probes:   probes,
	}
}

// RetrieveRequest is the retrieve endpoint body.
type RetrieveRequest struct {
	Query   string          `json:"query" validate:"required,min=1,max=1024"`
	TopK    *int            `json:"top_k" validate:"omitempty,min=0,max=100"`
	Filters RetrieveFilters `json:"filters"`
}

// RetrieveFilters narrows the search structurally.
type RetrieveFilters struct {
	ChannelID       string     `json:"channel_id,omitempty"`
	PublishedAfter  *time.Time `json:"published_after,omitempty"`
	PublishedBefore *time.Time `json:"published_before,omitempty"`
	MaxDurationSec  int        `json:"max_duration_sec,omitempty" validate:"min=0"`
}

// RetrieveResponse is the retrieve endpoint payload.
type RetrieveResponse struct {
	Hits         []retrieval.FusedHit     `json:"hits"`
	Routing      retrieval.Decision       `json:"routing"`
	Sources      []retrieval.SourceReport `json:"sources"`
	Degraded     bool                     `json:"degraded"`
	PolicyAction string                   `json:"policy_action"`
	Violations   []policy.Violation       `json:"violations,omitempty"`
	AuditTrail   []policy.AuditEntry      `json:"audit_trail"`
	DurationMs   int64                    `json:"duration_ms"`
}

// Retrieve runs the hybrid search, enforces content policy, and audits the
// request.
//
// @Summary Hybrid retrieval query
// @Description Fans the query out to the routed sinks, fuses results with reciprocal rank fusion, and applies content policy before returning hits.
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param request body RetrieveRequest true "Query and optional structured filters"
// @Success 200 {object} APIResponse{data=RetrieveResponse} "Fused, policy-checked hits"
// @Failure 400 {object} APIResponse "Invalid body or unfulfillable query"
// @Failure 503 {object} APIResponse "All routed sinks unavailable"
// @Security BearerAuth
// @Router /retrieve [post]
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req RetrieveRequest
	body := http.MaxBytesReader(w, r.Body, maxRetrieveBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, apiErr.Message, apiErr.Details)
		return
	}

	// An absent top_k means the configured default; an explicit zero is
	// honored as an empty result set.
	topK := -1
	if req.TopK != nil {
		topK = *req.TopK
	}
	q := retrieval.Query{
		Text: req.Query,
		TopK: topK,
		Filters: sinks.Filters{
			ChannelID:      req.Filters.ChannelID,
			MaxDurationSec: req.Filters.MaxDurationSec,
		},
	}
	if req.Filters.PublishedAfter != nil {
		q.Filters.PublishedAfter = *req.Filters.PublishedAfter
	}
	if req.Filters.PublishedBefore != nil {
		q.Filters.PublishedBefore = *req.Filters.PublishedBefore
	}

	start := time.Now()
	resp, err := h.engine.Retrieve(r.Context(), q)
	if err != nil {
		switch models.Classify(err).Kind {
		case models.ErrKindTerminal:
			rw.BadRequest(err.Error())
		default:
			rw.ServiceUnavailable("retrieval backends unavailable")
		}
		return
	}

	requestID := logging.RequestIDFromContext(r.Context())
	outcome := h.enforcer.Apply(r.Context(), requestID, resp.Hits)

	if h.audits != nil {
		rec := audit.RetrievalRecord{
			RequestID:    requestID,
			QueryText:    req.Query,
			Sources:      resp.Routing.Sources,
			RoutingMode:  resp.Routing.Mode,
			ResultCount:  len(outcome.Hits),
			PolicyAction: outcome.Action,
			Degraded:     resp.Degraded,
			DurationMS:   time.Since(start).Milliseconds(),
		}
		if err := h.audits.RecordRetrieval(r.Context(), rec); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("retrieval audit write failed")
		}
	}

	rw.Success(RetrieveResponse{
		Hits:         outcome.Hits,
		Routing:      resp.Routing,
		Sources:      resp.Sources,
		Degraded:     resp.Degraded,
		PolicyAction: outcome.Action,
		Violations:   outcome.Violations,
		AuditTrail:   outcome.Audit,
		DurationMs:   time.Since(start).Milliseconds(),
	})
}

// DLQListResponse wraps DLQ query results.
type DLQListResponse struct {
	Entries []models.DLQEntry `json:"entries"`
	Count   int               `json:"count"`
	Depth   int               `json:"depth"`
}

// DLQList lists dead-letter entries, filtered by query parameters.
//
// @Summary List dead-lettered jobs
// @Description Returns dead-letter entries newest first, with the total queue depth.
// @Tags Pipeline
// @Produce json
// @Param severity query string false "Filter by severity (low, medium, high, critical)"
// @Param job_type query string false "Filter by job type"
// @Param video_id query string false "Filter by video ID"
// @Param include_replayed query bool false "Include already replayed entries"
// @Param limit query int false "Maximum entries to return"
// @Success 200 {object} APIResponse{data=DLQListResponse}
// @Failure 400 {object} APIResponse "Unknown severity or invalid limit"
// @Security BearerAuth
// @Router /dlq [get]
func (h *Handler) DLQList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	f := dlq.QueryFilter{
		JobType: r.URL.Query().Get("job_type"),
		VideoID: r.URL.Query().Get("video_id"),
	}
	if s := r.URL.Query().Get("severity"); s != "" {
		sev := models.Severity(s)
		if !sev.Valid() {
			rw.BadRequest("unknown severity " + s)
			return
		}
		f.Severity = sev
	}
	if v := r.URL.Query().Get("include_replayed"); v != "" {
		f.IncludeReplayed = v == "true" || v == "1"
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			rw.BadRequest("invalid limit")
			return
		}
		f.Limit = n
	}

	entries, err := h.queue.Query(r.Context(), f)
	if err != nil {
		rw.InternalError("dead letter query failed")
		return
	}
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		rw.InternalError("dead letter depth failed")
		return
	}
	rw.Success(DLQListResponse{Entries: entries, Count: len(entries), Depth: depth})
}

// DLQReplayRequest selects entries for replay: either one job ID or a
// severity class with an optional limit.
type DLQReplayRequest struct {
	JobID    string `json:"job_id,omitempty"`
	Severity string `json:"severity,omitempty"`
	Limit    int    `json:"limit,omitempty" validate:"min=0"`
}

// DLQReplayResponse reports replay results.
type DLQReplayResponse struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

// DLQReplay re-runs dead-lettered jobs through their stage.
//
// @Summary Replay dead-lettered jobs
// @Description Replays one entry by job ID, or every pending entry of a severity class.
// @Tags Pipeline
// @Accept json
// @Produce json
// @Param request body DLQReplayRequest true "Exactly one of job_id or severity"
// @Success 200 {object} APIResponse{data=DLQReplayResponse}
// @Failure 400 {object} APIResponse "Ambiguous selector or unknown severity"
// @Failure 404 {object} APIResponse "No such entry"
// @Failure 409 {object} APIResponse "Entry already replayed"
// @Security BearerAuth
// @Router /dlq/replay [post]
func (h *Handler) DLQReplay(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req DLQReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if (req.JobID == "") == (req.Severity == "") {
		rw.BadRequest("provide exactly one of job_id or severity")
		return
	}

	if req.JobID != "" {
		_, err := h.replayer.Replay(r.Context(), req.JobID)
		switch {
		case err == nil:
			rw.Success(DLQReplayResponse{Replayed: 1})
		case errors.Is(err, dlq.ErrEntryNotFound):
			rw.NotFound("no such dead letter entry")
		case errors.Is(err, dlq.ErrAlreadyReplayed):
			rw.Conflict("entry already replayed")
		default:
			logging.Ctx(r.Context()).Error().Err(err).Str("job_id", req.JobID).Msg("replay failed")
			rw.Success(DLQReplayResponse{Failed: 1})
		}
		return
	}

	sev := models.Severity(req.Severity)
	if !sev.Valid() {
		rw.BadRequest("unknown severity " + req.Severity)
		return
	}
	replayed, failed, err := h.replayer.ReplayBySeverity(r.Context(), sev, req.Limit)
	if err != nil {
		rw.InternalError("replay batch failed")
		return
	}
	rw.Success(DLQReplayResponse{Replayed: replayed, Failed: failed})
}

// RunTriggerNow starts a pipeline run outside the daily schedule. The run
// executes in the background; the response only acknowledges the start.
//
// @Summary Trigger a pipeline run
// @Description Starts a full scrape-transcribe-summarize-index run in the background.
// @Tags Pipeline
// @Produce json
// @Success 202 {object} APIResponse "Run started"
// @Security BearerAuth
// @Router /runs/trigger [post]
func (h *Handler) RunTriggerNow(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.trigger.TriggerNow(ctx); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("triggered run failed")
		}
	}()
	rw.Accepted(map[string]string{"status": "run started"})
}

// StatusResponse summarizes pipeline state for operators.
type StatusResponse struct {
	Videos   map[models.VideoStatus]int `json:"videos"`
	Quotas   []models.QuotaSnapshot     `json:"quotas"`
	DLQDepth int                        `json:"dlq_depth"`
}

// Status reports video counts per lifecycle state, quota headroom, and
// dead-letter depth.
//
// @Summary Pipeline status
// @Description Video counts per lifecycle state, quota headroom per service, and dead-letter depth.
// @Tags Pipeline
// @Produce json
// @Success 200 {object} APIResponse{data=StatusResponse}
// @Security BearerAuth
// @Router /status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	counts, err := h.catalog.CountByStatus(r.Context())
	if err != nil {
		rw.InternalError("catalog unavailable")
		return
	}
	quotas, err := h.quotas.Snapshot(r.Context())
	if err != nil {
		rw.InternalError("ledger unavailable")
		return
	}
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		rw.InternalError("dead letter depth failed")
		return
	}
	rw.Success(StatusResponse{Videos: counts, Quotas: quotas, DLQDepth: depth})
}

// HealthStatus is the aggregate health payload.
type HealthStatus struct {
	Status   string                 `json:"status"`
	Sinks    map[string]string      `json:"sinks"`
	Quotas   []models.QuotaSnapshot `json:"quotas,omitempty"`
	DLQDepth int                    `json:"dlq_depth"`
	LastRun  *LastRunStatus         `json:"last_run,omitempty"`
}

// LastRunStatus summarizes the most recent pipeline run for the health
// surface.
type LastRunStatus struct {
	RunID       string    `json:"run_id"`
	HealthScore float64   `json:"health_score"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}

// Health reports aggregate system health. Always 200; degradation shows in
// the status field so monitors can distinguish "down" from "limping".
//
// @Summary Aggregate system health
// @Description Sink availability, quota headroom, dead-letter depth, and the last run's health score. Status is "healthy" or "degraded".
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	sinkStates := make(map[string]string, len(h.probes))
	for name, probe := range h.probes {
		if err := probe.Ping(ctx); err != nil {
			sinkStates[name] = err.Error()
			status = "degraded"
			continue
		}
		sinkStates[name] = "ok"
	}

	out := HealthStatus{Status: status, Sinks: sinkStates}
	if h.quotas != nil {
		if quotas, err := h.quotas.Snapshot(ctx); err == nil {
			out.Quotas = quotas
		} else {
			out.Status = "degraded"
		}
	}
	if h.queue != nil {
		if depth, err := h.queue.Depth(ctx); err == nil {
			out.DLQDepth = depth
		} else {
			out.Status = "degraded"
		}
	}
	if h.runs != nil {
		if last, ok := h.runs.LastRun(); ok {
			out.LastRun = &LastRunStatus{
				RunID:       last.RunID,
				HealthScore: last.HealthScore,
				Succeeded:   last.Succeeded,
				Failed:      last.Failed,
				CompletedAt: last.CompletedAt,
			}
		}
	}
	rw.Success(out)
}

// HealthLive reports process liveness.
//
// @Summary Liveness probe
// @Description Returns 200 whenever the process is alive, regardless of dependencies.
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady probes every sink; any failure makes the process not ready.
//
// @Summary Readiness probe
// @Description Pings every retrieval sink; any failure returns 503 with the per-sink results.
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 503 {object} APIResponse "One or more sinks unreachable"
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.probes))
	ready := true
	for name, probe := range h.probes {
		if err := probe.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "not ready", checks)
		return
	}
	rw.Success(map[string]any{"status": "ready", "checks": checks})
}
