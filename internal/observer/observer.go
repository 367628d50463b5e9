// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package observer

import (
	"context"
	"sync"

	"github.com/tomtom215/scriptorium/internal/eventbus"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// Health score weights: success rate dominates, dead-letter pressure and
// quota headroom split the rest.
const (
	successWeight  = 60.0
	dlqWeight      = 20.0
	headroomWeight = 20.0
)

// alertThreshold is the health score below which a run alert fires.
const alertThreshold = 80.0

// Alerter delivers operator notifications. Satisfied by the alerting sink.
type Alerter interface {
	Notify(ctx context.Context, alertType, severity string, payload map[string]any) error
}

// Observer finalizes run summaries: health scoring, metrics, the
// run.completed event, and the operator alert when a run degrades.
type Observer struct {
	alerts Alerter
	bus    *eventbus.Bus

	mu   sync.Mutex
	last *models.RunSummary
}

// New builds the observer. Either dependency may be nil.
func New(alerts Alerter, bus *eventbus.Bus) *Observer {
	return &Observer{alerts: alerts, bus: bus}
}

// LastRun returns the most recently completed run summary, if any run has
// finished since startup.
func (o *Observer) LastRun() (models.RunSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return models.RunSummary{}, false
	}
	return *o.last, true
}

// Started announces a planned run on the bus before any job is dispatched.
func (o *Observer) Started(ctx context.Context, plan models.RunPlan) {
	logging.Ctx(ctx).Info().
		Str("run_id", plan.RunID).
		Strs("channels", plan.Channels).
		Int("per_channel_limit", plan.PerChannelLimit).
		Msg("run plan published")

	if o.bus == nil {
		return
	}
	env, err := eventbus.NewRunStarted(plan)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("run started event build failed")
		return
	}
	if err := o.bus.Publish(ctx, env); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("run started event publish failed")
	}
}

// HealthScore grades a run 0..100 from its success rate, dead-letter
// pressure, and remaining quota headroom.
func HealthScore(s models.RunSummary) float64 {
	successRate := 1.0
	dlqRate := 0.0
	if s.Planned > 0 {
		successRate = float64(s.Succeeded) / float64(s.Planned)
		dlqRate = float64(s.DLQCount) / float64(s.Planned)
		if dlqRate > 1 {
			dlqRate = 1
		}
	}

	headroom := 1.0
	for _, q := range s.QuotaState {
		if q.Headroom < headroom {
			headroom = q.Headroom
		}
	}
	if headroom < 0 {
		headroom = 0
	}

	return successWeight*successRate + dlqWeight*(1-dlqRate) + headroomWeight*headroom
}

// Complete finalizes the summary in place and emits it.
func (o *Observer) Complete(ctx context.Context, summary *models.RunSummary) {
	summary.HealthScore = HealthScore(*summary)

	o.mu.Lock()
	snapshot := *summary
	o.last = &snapshot
	o.mu.Unlock()

	outcome := "success"
	switch {
	case summary.Planned > 0 && summary.Succeeded == 0:
		outcome = "failed"
	case summary.Failed > 0:
		outcome = "partial"
	}
	metrics.RecordRun(outcome, summary.CompletedAt.Sub(summary.StartedAt), summary.HealthScore)

	logging.Ctx(ctx).Info().
		Str("run_id", summary.RunID).
		Str("outcome", outcome).
		Int("planned", summary.Planned).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("dlq_count", summary.DLQCount).
		Float64("total_cost_usd", summary.TotalCostUSD).
		Float64("health_score", summary.HealthScore).
		Msg("run complete")

	if o.bus != nil {
		if env, err := eventbus.NewRunCompleted(*summary); err == nil {
			if perr := o.bus.Publish(ctx, env); perr != nil {
				logging.Ctx(ctx).Warn().Err(perr).Msg("run event publish failed")
			}
		}
	}

	if o.alerts != nil && (summary.HealthScore < alertThreshold || outcome == "failed") {
		severity := "warning"
		if outcome == "failed" || summary.HealthScore < alertThreshold/2 {
			severity = "critical"
		}
		err := o.alerts.Notify(ctx, "run_degraded", severity, map[string]any{
			"run_id":       summary.RunID,
			"outcome":      outcome,
			"health_score": summary.HealthScore,
			"planned":      summary.Planned,
			"succeeded":    summary.Succeeded,
			"failed":       summary.Failed,
			"dlq_count":    summary.DLQCount,
			"cost_usd":     summary.TotalCostUSD,
		})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("run alert delivery failed")
		}
	}
}
