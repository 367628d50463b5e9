// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package models

import "time"

// RunPlan is the persisted plan produced at each scheduling tick: which
// sources to discover from and the resource envelope the run may consume.
type RunPlan struct {
	RunID           string         `json:"run_id"`
	Channels        []string       `json:"channels"`
	SheetEnabled    bool           `json:"sheet_enabled"`
	PerChannelLimit int            `json:"per_channel_limit"`
	WindowDays      int            `json:"window_days"`
	ResourceLimits  ResourceLimits `json:"resource_limits"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ResourceLimits snapshots the remaining budget and quota at plan time.
type ResourceLimits struct {
	RemainingBudgetUSD float64 `json:"remaining_budget_usd"`
	RemainingQuota     int64   `json:"remaining_quota"`
}

// RunSummary aggregates the outcome of a pipeline run.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Planned      int             `json:"planned"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	DLQCount     int             `json:"dlq_count"`
	QuotaState   []QuotaSnapshot `json:"quota_state"`
	TotalCostUSD float64         `json:"total_cost_usd"`
	HealthScore  float64         `json:"health_score"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// QuotaSnapshot records quota headroom at run completion. Used and Limit
// are quota units for unit-metered services and USD for cost-metered ones.
type QuotaSnapshot struct {
	Service  string  `json:"service"`
	Used     float64 `json:"used"`
	Limit    float64 `json:"limit"`
	Headroom float64 `json:"headroom"` // 0..1, share of quota still available
}

// CostAggregate is the per-day spend record, keyed by YYYY-MM-DD in the
// scheduler timezone. Updated read-modify-write under the per-day lock.
type CostAggregate struct {
	Day                 string    `json:"day"`
	TranscriptionUSD    float64   `json:"transcription_usd_total"`
	TranscriptCount     int       `json:"transcript_count"`
	AlertsSent          []string  `json:"alerts_sent"`
	LastUpdated         time.Time `json:"last_updated"`
}

// HasAlert reports whether an alert tag was already recorded for the day.
func (c *CostAggregate) HasAlert(tag string) bool {
	for _, t := range c.AlertsSent {
		if t == tag {
			return true
		}
	}
	return false
}

// QuotaCounter tracks per-service consumption for a day window.
type QuotaCounter struct {
	Service   string    `json:"service"`
	Day       string    `json:"day"`
	Units     float64   `json:"units"`
	CostUSD   float64   `json:"cost_usd"`
	LastReset time.Time `json:"last_reset"`
}

// ThrottleRecord is the persisted alert-throttle state for one alert type.
type ThrottleRecord struct {
	AlertType string    `json:"alert_type"`
	LastSent  time.Time `json:"last_sent"`
	Count     int       `json:"count"`
}
