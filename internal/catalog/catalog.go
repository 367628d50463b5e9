// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/store"
)

// Key prefixes inside the document store. The catalog owns these.
const (
	videoKeyPrefix      = "video:"
	transcriptKeyPrefix = "transcript:"
	summaryKeyPrefix    = "summary:"
	statusIdxPrefix     = "video_status:"
	runPlanKeyPrefix    = "run_plan:"
)

// DefaultMaxDurationSec is the discovery hard filter for video length.
const DefaultMaxDurationSec = 4200

// Errors returned by catalog operations.
var (
	// ErrVideoNotFound is returned when the video does not exist.
	ErrVideoNotFound = errors.New("video not found")

	// ErrTranscriptNotFound is returned when no transcript is committed.
	ErrTranscriptNotFound = errors.New("transcript not found")

	// ErrSummaryNotFound is returned when no summary is committed.
	ErrSummaryNotFound = errors.New("summary not found")

	// ErrDurationExceeded rejects oversized videos at discovery.
	ErrDurationExceeded = errors.New("video duration exceeds maximum")

	// ErrRunPlanNotFound is returned when no plan was persisted for a run.
	ErrRunPlanNotFound = errors.New("run plan not found")

	// ErrTranscriptRequired is returned when a summary or a transition
	// depends on a transcript that has not been committed.
	ErrTranscriptRequired = errors.New("transcript required")

	// ErrSummaryRequired is returned when a transition to summarized has
	// no committed summary.
	ErrSummaryRequired = errors.New("summary required")
)

// StateConflictError reports a transition whose from-state did not match
// the current state. The dispatcher treats it as a lost race, not a fault.
type StateConflictError struct {
	VideoID string
	Current models.VideoStatus
	From    models.VideoStatus
	To      models.VideoStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("video %s is %s, cannot transition %s -> %s",
		e.VideoID, e.Current, e.From, e.To)
}

// TransitionEvent describes a committed status change. Events for the same
// video are delivered in commit order.
type TransitionEvent struct {
	VideoID    string             `json:"video_id"`
	From       models.VideoStatus `json:"from"`
	To         models.VideoStatus `json:"to"`
	RetryCount int                `json:"retry_count"`
	At         time.Time          `json:"at"`
}

// EventSink receives committed transition events. Implementations must be
// fast or hand off internally; the catalog calls them while holding the
// per-video lock.
type EventSink interface {
	VideoTransitioned(ctx context.Context, evt TransitionEvent)
}

// Config controls catalog behavior.
type Config struct {
	// MaxDurationSec rejects videos longer than this at discovery.
	MaxDurationSec int

	// Events receives committed transitions. Optional.
	Events EventSink
}

// Catalog is the BadgerDB-backed metadata store.
type Catalog struct {
	store  *store.Store
	km     *store.KeyMutex
	events EventSink

	maxDurationSec int
}

// New creates a Catalog on top of the given document store.
func New(s *store.Store, cfg Config) *Catalog {
	if cfg.MaxDurationSec == 0 {
		cfg.MaxDurationSec = DefaultMaxDurationSec
	}
	return &Catalog{
		store:          s,
		km:             store.NewKeyMutex(),
		events:         cfg.Events,
		maxDurationSec: cfg.MaxDurationSec,
	}
}

func videoKey(videoID string) string      { return videoKeyPrefix + videoID }
func transcriptKey(videoID string) string { return transcriptKeyPrefix + videoID }
func summaryKey(videoID string) string    { return summaryKeyPrefix + videoID }
func runPlanKey(runID string) string      { return runPlanKeyPrefix + runID }

func statusIdxKey(status models.VideoStatus, videoID string) string {
	return statusIdxPrefix + string(status) + ":" + videoID
}

// UpsertVideo inserts or merges a video record. Re-discovery of a known
// video refreshes metadata but never downgrades status or resets retry
// counts. Videos longer than the configured maximum are rejected before
// any record is written.
func (c *Catalog) UpsertVideo(ctx context.Context, v models.Video) (models.Video, error) {
	if err := v.Validate(); err != nil {
		return models.Video{}, models.NewTerminal(models.ErrTypeInvalidInput, err)
	}
	if v.DurationSec > c.maxDurationSec {
		logging.Ctx(ctx).Warn().
			Str("video_id", v.VideoID).
			Int("duration_sec", v.DurationSec).
			Int("max_duration_sec", c.maxDurationSec).
			Msg("Video rejected at discovery: duration exceeds maximum")
		return models.Video{}, fmt.Errorf("%w: %ds > %ds", ErrDurationExceeded, v.DurationSec, c.maxDurationSec)
	}

	c.km.Lock(v.VideoID)
	defer c.km.Unlock(v.VideoID)

	now := time.Now().UTC()
	var stored models.Video

	err := c.store.Update(ctx, "upsert_video", func(txn *badger.Txn) error {
		var existing models.Video
		err := store.GetJSON(txn, videoKey(v.VideoID), &existing)
		switch {
		case errors.Is(err, store.ErrKeyNotFound):
			stored = v
			if stored.Status == "" {
				stored.Status = models.StatusDiscovered
			}
			stored.CreatedAt = now
			stored.UpdatedAt = now
			if err := store.SetJSON(txn, statusIdxKey(stored.Status, stored.VideoID), now); err != nil {
				return err
			}
			return store.SetJSON(txn, videoKey(stored.VideoID), stored)

		case err != nil:
			return err

		default:
			// Merge: metadata refreshes, lifecycle fields are preserved.
			stored = existing
			stored.Title = v.Title
			stored.ChannelID = v.ChannelID
			stored.PublishedAt = v.PublishedAt
			stored.DurationSec = v.DurationSec
			stored.Source = v.Source
			stored.UpdatedAt = now
			return store.SetJSON(txn, videoKey(stored.VideoID), stored)
		}
	})
	if err != nil {
		return models.Video{}, err
	}

	metrics.CatalogUpserts.Inc()
	return stored, nil
}

// Get returns the video record for videoID.
func (c *Catalog) Get(ctx context.Context, videoID string) (models.Video, error) {
	var v models.Video
	err := c.store.Get(ctx, videoKey(videoID), &v)
	if errors.Is(err, store.ErrKeyNotFound) {
		return models.Video{}, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}
	if err != nil {
		return models.Video{}, err
	}
	return v, nil
}

// SaveRunPlan persists a run plan under its run ID before dispatch.
func (c *Catalog) SaveRunPlan(ctx context.Context, plan models.RunPlan) error {
	if plan.RunID == "" {
		return models.NewTerminal(models.ErrTypeInvalidInput, errors.New("run plan has no run_id"))
	}
	return c.store.Set(ctx, runPlanKey(plan.RunID), plan)
}

// GetRunPlan loads the persisted plan for runID.
func (c *Catalog) GetRunPlan(ctx context.Context, runID string) (models.RunPlan, error) {
	var plan models.RunPlan
	err := c.store.Get(ctx, runPlanKey(runID), &plan)
	if errors.Is(err, store.ErrKeyNotFound) {
		return models.RunPlan{}, fmt.Errorf("%w: %s", ErrRunPlanNotFound, runID)
	}
	if err != nil {
		return models.RunPlan{}, err
	}
	return plan, nil
}

// Transition commits a status change. It fails with StateConflictError if
// the current status does not equal from, unless to is failed (any state
// may fail). Transitions into transcribed and summarized verify that the
// corresponding artifact has been committed first.
func (c *Catalog) Transition(ctx context.Context, videoID string, from, to models.VideoStatus) (models.Video, error) {
	if !to.Valid() {
		return models.Video{}, models.NewTerminal(models.ErrTypeInvalidInput,
			fmt.Errorf("unknown status %q", to))
	}

	c.km.Lock(videoID)
	defer c.km.Unlock(videoID)

	var updated models.Video
	var noop bool
	err := c.store.Update(ctx, "transition", func(txn *badger.Txn) error {
		var v models.Video
		if err := store.GetJSON(txn, videoKey(videoID), &v); err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
			}
			return err
		}

		// Re-failing an already failed video is idempotent.
		if v.Status == models.StatusFailed && to == models.StatusFailed {
			updated = v
			noop = true
			return nil
		}

		if v.Status != from && to != models.StatusFailed {
			return &StateConflictError{VideoID: videoID, Current: v.Status, From: from, To: to}
		}
		if to != models.StatusFailed && !v.Status.CanTransitionTo(to) {
			return &StateConflictError{VideoID: videoID, Current: v.Status, From: from, To: to}
		}

		switch to {
		case models.StatusTranscribed:
			if _, err := txn.Get([]byte(transcriptKey(videoID))); errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: transition to transcribed for %s", ErrTranscriptRequired, videoID)
			}
		case models.StatusSummarized:
			if _, err := txn.Get([]byte(summaryKey(videoID))); errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: transition to summarized for %s", ErrSummaryRequired, videoID)
			}
		}

		if err := txn.Delete([]byte(statusIdxKey(v.Status, videoID))); err != nil &&
			!errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		v.Status = to
		v.UpdatedAt = time.Now().UTC()
		if err := store.SetJSON(txn, statusIdxKey(to, videoID), v.UpdatedAt); err != nil {
			return err
		}
		if err := store.SetJSON(txn, videoKey(videoID), v); err != nil {
			return err
		}

		updated = v
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	if noop {
		return updated, nil
	}

	metrics.RecordTransition(string(from), string(to))
	logging.Ctx(ctx).Info().
		Str("video_id", videoID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Video status transition committed")

	c.emit(ctx, TransitionEvent{
		VideoID:    videoID,
		From:       from,
		To:         to,
		RetryCount: updated.RetryCount,
		At:         updated.UpdatedAt,
	})
	return updated, nil
}

// ResetForReplay returns a failed video to the given status with its retry
// count cleared. This is the only path out of failed and is reserved for
// operator-initiated DLQ replay.
func (c *Catalog) ResetForReplay(ctx context.Context, videoID string, to models.VideoStatus) (models.Video, error) {
	if !to.Valid() || to == models.StatusFailed {
		return models.Video{}, models.NewTerminal(models.ErrTypeInvalidInput,
			fmt.Errorf("cannot replay into status %q", to))
	}

	c.km.Lock(videoID)
	defer c.km.Unlock(videoID)

	var updated models.Video
	err := c.store.Update(ctx, "reset_for_replay", func(txn *badger.Txn) error {
		var v models.Video
		if err := store.GetJSON(txn, videoKey(videoID), &v); err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
			}
			return err
		}
		if v.Status != models.StatusFailed {
			return &StateConflictError{VideoID: videoID, Current: v.Status, From: models.StatusFailed, To: to}
		}

		if err := txn.Delete([]byte(statusIdxKey(v.Status, videoID))); err != nil &&
			!errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		v.Status = to
		v.RetryCount = 0
		v.UpdatedAt = time.Now().UTC()
		if err := store.SetJSON(txn, statusIdxKey(to, videoID), v.UpdatedAt); err != nil {
			return err
		}
		if err := store.SetJSON(txn, videoKey(videoID), v); err != nil {
			return err
		}
		updated = v
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}

	metrics.RecordTransition(string(models.StatusFailed), string(to))
	logging.Ctx(ctx).Info().
		Str("video_id", videoID).
		Str("to", string(to)).
		Msg("Failed video reset for replay")

	c.emit(ctx, TransitionEvent{
		VideoID: videoID,
		From:    models.StatusFailed,
		To:      to,
		At:      updated.UpdatedAt,
	})
	return updated, nil
}

// IncrementRetry bumps the video's retry counter and returns the new value.
func (c *Catalog) IncrementRetry(ctx context.Context, videoID string) (int, error) {
	c.km.Lock(videoID)
	defer c.km.Unlock(videoID)

	var count int
	err := c.store.Update(ctx, "increment_retry", func(txn *badger.Txn) error {
		var v models.Video
		if err := store.GetJSON(txn, videoKey(videoID), &v); err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
			}
			return err
		}
		v.RetryCount++
		v.UpdatedAt = time.Now().UTC()
		count = v.RetryCount
		return store.SetJSON(txn, videoKey(videoID), v)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// QueryByStatus returns up to limit videos in the given status whose last
// update is at or after since. A zero since matches everything; limit <= 0
// means no cap.
func (c *Catalog) QueryByStatus(ctx context.Context, status models.VideoStatus, since time.Time, limit int) ([]models.Video, error) {
	var ids []string
	prefix := statusIdxPrefix + string(status) + ":"
	err := c.store.List(ctx, prefix, func(key string, _ []byte) error {
		ids = append(ids, key[len(prefix):])
		return nil
	})
	if err != nil {
		return nil, err
	}

	videos := make([]models.Video, 0, len(ids))
	for _, id := range ids {
		v, err := c.Get(ctx, id)
		if errors.Is(err, ErrVideoNotFound) {
			continue // index raced a concurrent transition
		}
		if err != nil {
			return nil, err
		}
		if v.Status != status {
			continue
		}
		if !since.IsZero() && v.UpdatedAt.Before(since) {
			continue
		}
		videos = append(videos, v)
		if limit > 0 && len(videos) >= limit {
			break
		}
	}
	return videos, nil
}

// CountByStatus returns the number of videos per status.
func (c *Catalog) CountByStatus(ctx context.Context) (map[models.VideoStatus]int, error) {
	counts := make(map[models.VideoStatus]int)
	err := c.store.List(ctx, statusIdxPrefix, func(key string, _ []byte) error {
		rest := key[len(statusIdxPrefix):]
		for i := 0; i < len(rest); i++ {
			if rest[i] == ':' {
				counts[models.VideoStatus(rest[:i])]++
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (c *Catalog) emit(ctx context.Context, evt TransitionEvent) {
	if c.events == nil {
		return
	}
	c.events.VideoTransitioned(ctx, evt)
}
