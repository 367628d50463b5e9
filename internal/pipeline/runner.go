// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/dlq"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// queryLimit bounds how many pending videos a single run picks up per
// status. Leftovers roll into the next run.
const queryLimit = 1000

// Reporter brackets a run on the event bus: Started announces the
// persisted plan before dispatch, Complete finalizes the summary with
// health scoring, metrics, and alerting. The observer implements it.
type Reporter interface {
	Started(ctx context.Context, plan models.RunPlan)
	Complete(ctx context.Context, summary *models.RunSummary)
}

// Runner drives one full ingestion pass: plan, discover, then advance
// every pending video through transcription, summarization, and indexing.
type Runner struct {
	planner *Planner
	scraper *Scraper
	disp    *Dispatcher
	catalog *catalog.Catalog
	queue   *dlq.Queue

	// stages in pipeline order; each consumes the previous one's output
	// status.
	stages []Stage

	reporter    Reporter
	cancelGrace time.Duration
}

// NewRunner assembles the run orchestrator. reporter may be nil.
func NewRunner(planner *Planner, scraper *Scraper, disp *Dispatcher, cat *catalog.Catalog, queue *dlq.Queue,
	stages []Stage, reporter Reporter, cancelGrace time.Duration) *Runner {
	return &Runner{
		planner:     planner,
		scraper:     scraper,
		disp:        disp,
		catalog:     cat,
		queue:       queue,
		stages:      stages,
		reporter:    reporter,
		cancelGrace: cancelGrace,
	}
}

// Run executes one ingestion pass and returns its summary. On shutdown,
// in-flight stage jobs get the configured grace window to settle; no new
// jobs are dispatched once the parent context is cancelled.
func (r *Runner) Run(ctx context.Context) (models.RunSummary, error) {
	plan, err := r.planner.Plan(ctx)
	if err != nil {
		return models.RunSummary{}, err
	}

	ctx = logging.ContextWithRunID(ctx, plan.RunID)
	startedAt := time.Now().UTC()
	logging.Ctx(ctx).Info().
		Strs("channels", plan.Channels).
		Int("window_days", plan.WindowDays).
		Float64("remaining_budget_usd", plan.ResourceLimits.RemainingBudgetUSD).
		Msg("run started")

	// The plan survives the process and the run_started event precedes any
	// dispatch, so an operator can reconstruct what the run intended.
	if err := r.catalog.SaveRunPlan(ctx, plan); err != nil {
		return models.RunSummary{}, err
	}
	if r.reporter != nil {
		r.reporter.Started(ctx, plan)
	}

	// Jobs run on a context that survives parent cancellation by the
	// grace window, so settled work is committed rather than torn down.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()
	go func() {
		select {
		case <-ctx.Done():
			t := time.NewTimer(r.cancelGrace)
			defer t.Stop()
			select {
			case <-t.C:
			case <-jobCtx.Done():
			}
			cancelJobs()
		case <-jobCtx.Done():
		}
	}()

	var scrapeErr error
	if release, err := r.disp.Acquire(jobCtx, JobScrape); err == nil {
		start := time.Now()
		_, scrapeErr = r.scraper.Run(jobCtx, plan)
		outcome := string(ResultSuccess)
		if scrapeErr != nil {
			outcome = string(ResultFailed)
			logging.Ctx(ctx).Error().Err(scrapeErr).Msg("discovery failed")
		}
		metrics.RecordStageJob(JobScrape, outcome, time.Since(start))
		release()
	} else {
		scrapeErr = err
	}

	summary := r.advancePending(ctx, jobCtx, plan)
	summary.StartedAt = startedAt
	summary.CompletedAt = time.Now().UTC()

	if depth, err := r.queue.Depth(ctx); err == nil {
		summary.DLQCount = depth
	}
	if snaps, err := r.planner.ledger.Snapshot(ctx); err == nil {
		summary.QuotaState = snaps
	}

	if r.reporter != nil {
		r.reporter.Complete(ctx, &summary)
	}

	if scrapeErr != nil && !errors.Is(scrapeErr, ErrDeferred) {
		return summary, scrapeErr
	}
	return summary, ctx.Err()
}

// advancePending walks every video sitting in a stage entry status through
// the remaining stages, bounded by the dispatcher's per-stage caps.
func (r *Runner) advancePending(ctx, jobCtx context.Context, plan models.RunPlan) models.RunSummary {
	summary := models.RunSummary{RunID: plan.RunID}

	pending := make(map[string]models.VideoStatus)
	for _, stage := range r.stages {
		videos, err := r.catalog.QueryByStatus(ctx, stage.From(), time.Time{}, queryLimit)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("status", string(stage.From())).Msg("pending query failed")
			continue
		}
		for _, v := range videos {
			if _, seen := pending[v.VideoID]; !seen {
				pending[v.VideoID] = v.Status
			}
		}
	}
	summary.Planned = len(pending)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(jobCtx)
	for videoID, status := range pending {
		videoID, status := videoID, status
		g.Go(func() error {
			succeeded, cost := r.advanceVideo(gctx, ctx, videoID, status)
			mu.Lock()
			defer mu.Unlock()
			summary.TotalCostUSD += cost
			if succeeded {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	return summary
}

// advanceVideo runs every due stage for one video in order. Returns whether
// the video got through all its due stages, plus cost incurred.
func (r *Runner) advanceVideo(jobCtx, parent context.Context, videoID string, status models.VideoStatus) (bool, float64) {
	var cost float64
	for _, stage := range r.stages {
		if status != stage.From() {
			continue
		}
		if parent.Err() != nil {
			// Shutdown: stop dispatching, leave the video where it is.
			return false, cost
		}
		result, err := r.disp.Process(jobCtx, stage, videoID)
		if err != nil {
			if errors.Is(err, ErrDeferred) {
				logging.Ctx(parent).Info().
					Str("video_id", videoID).
					Str("stage", stage.JobType()).
					Msg("video deferred to next run")
			}
			return false, cost
		}
		cost += result.CostUSD
		status = stage.To()
	}
	return true, cost
}
