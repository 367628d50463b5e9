// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/dlq"
	"github.com/tomtom215/scriptorium/internal/eventbus"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/store"
)

// ErrDeferred marks a job pushed to a later run because a budget or quota
// window is exhausted. Deferred jobs are not failures and never dead-letter.
var ErrDeferred = errors.New("job deferred to next run")

// Dispatcher executes stage jobs under the retry and dead-letter policy.
// Per-stage semaphores bound concurrency; a per-video mutex guarantees at
// most one stage runs for a video at a time.
type Dispatcher struct {
	catalog *catalog.Catalog
	queue   *dlq.Queue
	bus     *eventbus.Bus
	videoMu *store.KeyMutex

	maxAttempts int
	sems        map[string]*semaphore.Weighted

	// sleep is swapped by tests to skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher builds a dispatcher with the configured concurrency caps.
func NewDispatcher(cat *catalog.Catalog, queue *dlq.Queue, bus *eventbus.Bus, retries config.RetriesConfig, conc config.ConcurrencyConfig) *Dispatcher {
	return &Dispatcher{
		catalog: cat,
		queue:   queue,
		bus:     bus,
		videoMu: store.NewKeyMutex(),

		maxAttempts: retries.MaxAttempts,
		sems: map[string]*semaphore.Weighted{
			JobScrape:     semaphore.NewWeighted(int64(conc.Scrape)),
			JobTranscribe: semaphore.NewWeighted(int64(conc.Transcribe)),
			JobSummarize:  semaphore.NewWeighted(int64(conc.Summarize)),
			JobIndex:      semaphore.NewWeighted(int64(conc.Index)),
		},
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire blocks until a slot for the job type is free. Scrape uses this
// directly; per-video stages go through Process.
func (d *Dispatcher) Acquire(ctx context.Context, jobType string) (release func(), err error) {
	sem, ok := d.sems[jobType]
	if !ok {
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

// Process runs one stage for one video: entry-status check, bounded
// retries with exponential backoff, and the terminal decision (advance,
// defer, or dead-letter).
func (d *Dispatcher) Process(ctx context.Context, stage Stage, videoID string) (*Result, error) {
	release, err := d.Acquire(ctx, stage.JobType())
	if err != nil {
		return nil, err
	}
	defer release()

	d.videoMu.Lock(videoID)
	defer d.videoMu.Unlock(videoID)

	ctx = logging.ContextWithVideoID(ctx, videoID)

	video, err := d.catalog.Get(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}
	if video.Status != stage.From() {
		// Another worker or a previous run already moved it on. Not an
		// error; the work is simply done or not yet due.
		logging.Ctx(ctx).Debug().
			Str("stage", stage.JobType()).
			Str("status", string(video.Status)).
			Msg("stage skipped, video not in entry status")
		return &Result{Status: ResultSuccess, Outputs: map[string]string{"skipped": "status"}}, nil
	}

	start := time.Now()
	result, runErr := d.runWithRetry(ctx, stage, video)
	if runErr != nil {
		metrics.RecordStageJob(stage.JobType(), string(ResultFailed), time.Since(start))
		return nil, runErr
	}

	if _, err := d.catalog.Transition(ctx, videoID, stage.From(), stage.To()); err != nil {
		metrics.RecordStageJob(stage.JobType(), string(ResultFailed), time.Since(start))
		return nil, fmt.Errorf("advance %s to %s: %w", videoID, stage.To(), err)
	}
	metrics.RecordStageJob(stage.JobType(), string(result.Status), time.Since(start))
	return result, nil
}

// runWithRetry applies the dispatch decision table to each failure:
// transient kinds retry with backoff until attempts run out, budget and
// quota rejections defer, terminal kinds dead-letter immediately.
func (d *Dispatcher) runWithRetry(ctx context.Context, stage Stage, video models.Video) (*Result, error) {
	for attempt := 0; ; attempt++ {
		result, err := stage.Run(ctx, video)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		ce := models.Classify(err)
		switch ce.Kind {
		case models.ErrKindBudgetExceeded, models.ErrKindQuotaExceeded:
			logging.Ctx(ctx).Warn().
				Str("stage", stage.JobType()).
				Str("error_type", ce.ErrorType).
				Msg("job deferred, spend window exhausted")
			return nil, fmt.Errorf("%s %s: %w: %w", stage.JobType(), video.VideoID, ErrDeferred, err)

		case models.ErrKindTransient, models.ErrKindPartial:
			if attempt >= d.maxAttempts {
				return nil, d.deadLetter(ctx, stage, video, ce, attempt)
			}
			retryCount, rerr := d.catalog.IncrementRetry(ctx, video.VideoID)
			if rerr != nil {
				logging.Ctx(ctx).Warn().Err(rerr).Msg("retry count update failed")
			}
			metrics.RecordStageRetry(stage.JobType())
			delay := backoffDelay(attempt)
			logging.Ctx(ctx).Warn().Err(err).
				Str("stage", stage.JobType()).
				Int("attempt", attempt+1).
				Int("retry_count", retryCount).
				Dur("backoff", delay).
				Msg("stage attempt failed, retrying")
			if serr := d.sleep(ctx, delay); serr != nil {
				return nil, serr
			}

		default:
			// Terminal and policy violations never retry.
			return nil, d.deadLetter(ctx, stage, video, ce, attempt)
		}
	}
}

// deadLetter parks the failed job, marks the video failed, and announces
// the entry on the bus. The returned error wraps the original cause.
func (d *Dispatcher) deadLetter(ctx context.Context, stage Stage, video models.Video, ce *models.ClassifiedError, attempts int) error {
	entry := dlq.NewEntry(stage.JobType(), video.VideoID, ce, attempts, map[string]string{
		"video_id": video.VideoID,
		"status":   string(video.Status),
	})
	if err := d.queue.Enqueue(ctx, entry); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("job_id", entry.JobID).Msg("dead letter enqueue failed")
	}

	if _, err := d.catalog.Transition(ctx, video.VideoID, video.Status, models.StatusFailed); err != nil {
		var conflict *catalog.StateConflictError
		if !errors.As(err, &conflict) {
			logging.Ctx(ctx).Error().Err(err).Msg("failed-status transition rejected")
		}
	}

	if d.bus != nil {
		if env, err := eventbus.NewJobDeadLettered(entry, logging.RunIDFromContext(ctx)); err == nil {
			if perr := d.bus.Publish(ctx, env); perr != nil {
				logging.Ctx(ctx).Warn().Err(perr).Msg("dead letter event publish failed")
			}
		}
	}

	logging.Ctx(ctx).Error().
		Str("stage", stage.JobType()).
		Str("job_id", entry.JobID).
		Str("severity", string(entry.Severity)).
		Str("error_type", ce.ErrorType).
		Int("attempts", attempts).
		Msg("job dead lettered")
	return fmt.Errorf("%s %s dead lettered after %d attempts: %w", stage.JobType(), video.VideoID, attempts, ce)
}
