// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"fmt"

	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/dlq"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/models"
)

// Replayer re-runs dead-lettered jobs. A replay marks the entry consumed,
// resets the video to the failed stage's entry status, and dispatches the
// stage again under the normal retry policy.
type Replayer struct {
	catalog *catalog.Catalog
	queue   *dlq.Queue
	disp    *Dispatcher
	stages  map[string]Stage
}

// NewReplayer builds the replayer over the per-video stages.
func NewReplayer(cat *catalog.Catalog, queue *dlq.Queue, disp *Dispatcher, stages []Stage) *Replayer {
	byType := make(map[string]Stage, len(stages))
	for _, st := range stages {
		byType[st.JobType()] = st
	}
	return &Replayer{catalog: cat, queue: queue, disp: disp, stages: byType}
}

// Replay re-executes one dead-lettered job by ID.
func (r *Replayer) Replay(ctx context.Context, jobID string) (*Result, error) {
	entry, err := r.queue.MarkReplayed(ctx, jobID)
	if err != nil {
		return nil, err
	}

	stage, ok := r.stages[entry.JobType]
	if !ok {
		return nil, fmt.Errorf("job %s has unreplayable type %q", jobID, entry.JobType)
	}
	if entry.VideoID == "" {
		return nil, fmt.Errorf("job %s has no video to replay", jobID)
	}

	if _, err := r.catalog.ResetForReplay(ctx, entry.VideoID, stage.From()); err != nil {
		return nil, fmt.Errorf("reset %s for replay: %w", entry.VideoID, err)
	}

	logging.Ctx(ctx).Info().
		Str("job_id", jobID).
		Str("job_type", entry.JobType).
		Str("video_id", entry.VideoID).
		Msg("replaying dead-lettered job")
	return r.disp.Process(ctx, stage, entry.VideoID)
}

// ReplayBySeverity replays every pending entry at the given severity,
// highest recovery priority first. Individual failures do not stop the
// sweep.
func (r *Replayer) ReplayBySeverity(ctx context.Context, severity models.Severity, limit int) (replayed, failed int, err error) {
	entries, err := r.queue.Query(ctx, dlq.QueryFilter{Severity: severity, Limit: limit})
	if err != nil {
		return 0, 0, err
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return replayed, failed, ctx.Err()
		}
		if _, err := r.Replay(ctx, entry.JobID); err != nil {
			failed++
			logging.Ctx(ctx).Warn().Err(err).Str("job_id", entry.JobID).Msg("replay failed")
			continue
		}
		replayed++
	}
	return replayed, failed, nil
}
