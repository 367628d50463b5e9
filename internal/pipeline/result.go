// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"time"

	"github.com/tomtom215/scriptorium/internal/models"
)

// Stage job types. These key concurrency caps, metrics, and DLQ severity.
const (
	JobScrape     = "scrape"
	JobTranscribe = "transcribe"
	JobSummarize  = "summarize"
	JobIndex      = "index"
)

// ResultStatus is the outcome of a single stage job.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultFailed  ResultStatus = "failed"
)

// Result reports a finished stage job.
type Result struct {
	Status  ResultStatus      `json:"status"`
	Outputs map[string]string `json:"outputs,omitempty"`
	CostUSD float64           `json:"cost_usd,omitempty"`

	// RetryIn hints when a deferred job becomes viable again, typically
	// the budget reset window. Zero when not applicable.
	RetryIn time.Duration `json:"retry_in,omitempty"`
}

// Stage is one per-video pipeline step. Run must be idempotent: the
// dispatcher may re-execute a stage whose previous attempt partially
// completed, and replays re-enter here.
type Stage interface {
	// JobType names the stage for dispatch policy and metrics.
	JobType() string

	// From is the status a video must hold to enter this stage.
	From() models.VideoStatus

	// To is the status a video reaches when the stage succeeds.
	To() models.VideoStatus

	// Run executes the stage against the video.
	Run(ctx context.Context, video models.Video) (*Result, error)
}
