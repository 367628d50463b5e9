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
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/store"
)

// CommitTranscript stores the transcript for a video. At most one
// transcript exists per video: committing again with the same content
// digest is an idempotent no-op, committing with a different digest
// replaces the record.
func (c *Catalog) CommitTranscript(ctx context.Context, t models.Transcript) error {
	if t.VideoID == "" {
		return models.NewTerminal(models.ErrTypeInvalidInput, errors.New("transcript missing video_id"))
	}
	if t.ContentDigest == "" {
		return models.NewTerminal(models.ErrTypeInvalidInput, errors.New("transcript missing content_digest"))
	}

	c.km.Lock(t.VideoID)
	defer c.km.Unlock(t.VideoID)

	return c.store.Update(ctx, "commit_transcript", func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(videoKey(t.VideoID))); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrVideoNotFound, t.VideoID)
		}

		var existing models.Transcript
		err := store.GetJSON(txn, transcriptKey(t.VideoID), &existing)
		switch {
		case errors.Is(err, store.ErrKeyNotFound):
			// First commit.
		case err != nil:
			return err
		case existing.ContentDigest == t.ContentDigest:
			logging.Ctx(ctx).Debug().
				Str("video_id", t.VideoID).
				Str("content_digest", t.ContentDigest).
				Msg("Transcript unchanged, commit is a no-op")
			return nil
		default:
			logging.Ctx(ctx).Info().
				Str("video_id", t.VideoID).
				Str("old_digest", existing.ContentDigest).
				Str("new_digest", t.ContentDigest).
				Msg("Replacing transcript with changed content digest")
		}

		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		return store.SetJSON(txn, transcriptKey(t.VideoID), t)
	})
}

// GetTranscript returns the committed transcript for videoID.
func (c *Catalog) GetTranscript(ctx context.Context, videoID string) (models.Transcript, error) {
	var t models.Transcript
	err := c.store.Get(ctx, transcriptKey(videoID), &t)
	if errors.Is(err, store.ErrKeyNotFound) {
		return models.Transcript{}, fmt.Errorf("%w: %s", ErrTranscriptNotFound, videoID)
	}
	if err != nil {
		return models.Transcript{}, err
	}
	return t, nil
}

// CommitSummary stores the summary for a video. A committed transcript is
// required first.
func (c *Catalog) CommitSummary(ctx context.Context, s models.Summary) error {
	if s.VideoID == "" {
		return models.NewTerminal(models.ErrTypeInvalidInput, errors.New("summary missing video_id"))
	}

	c.km.Lock(s.VideoID)
	defer c.km.Unlock(s.VideoID)

	return c.store.Update(ctx, "commit_summary", func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(videoKey(s.VideoID))); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrVideoNotFound, s.VideoID)
		}
		if _, err := txn.Get([]byte(transcriptKey(s.VideoID))); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: summary for %s", ErrTranscriptRequired, s.VideoID)
		}

		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now().UTC()
		}
		return store.SetJSON(txn, summaryKey(s.VideoID), s)
	})
}

// GetSummary returns the committed summary for videoID.
func (c *Catalog) GetSummary(ctx context.Context, videoID string) (models.Summary, error) {
	var s models.Summary
	err := c.store.Get(ctx, summaryKey(videoID), &s)
	if errors.Is(err, store.ErrKeyNotFound) {
		return models.Summary{}, fmt.Errorf("%w: %s", ErrSummaryNotFound, videoID)
	}
	if err != nil {
		return models.Summary{}, err
	}
	return s, nil
}
