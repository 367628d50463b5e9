// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package sinks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// Warehouse is the structured sink: denormalized video and chunk metadata
// for filterable retrieval, plus the pipeline event log and audit tables.
type Warehouse struct {
	db *sql.DB
}

// NewWarehouse opens the warehouse database and ensures its schema.
func NewWarehouse(path string) (*Warehouse, error) {
	db, err := openDuckDB(path)
	if err != nil {
		return nil, err
	}
	w := &Warehouse{db: db}
	if err := w.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.SetSinkHealth(SinkStructured, true)
	return w, nil
}

func (w *Warehouse) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			video_id     VARCHAR PRIMARY KEY,
			channel_id   VARCHAR NOT NULL,
			title        VARCHAR,
			published_at TIMESTAMP,
			duration_sec INTEGER,
			source       VARCHAR,
			status       VARCHAR,
			updated_at   TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			chunk_id       VARCHAR PRIMARY KEY,
			video_id       VARCHAR NOT NULL,
			ordinal        INTEGER NOT NULL,
			content_sha256 VARCHAR NOT NULL,
			preview        VARCHAR,
			token_count    INTEGER,
			title          VARCHAR,
			channel_id     VARCHAR,
			published_at   TIMESTAMP,
			duration_sec   INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS pipeline_events (
			event_id    VARCHAR PRIMARY KEY,
			event_type  VARCHAR NOT NULL,
			video_id    VARCHAR,
			run_id      VARCHAR,
			payload     JSON,
			occurred_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS retrieval_audit (
			request_id    VARCHAR PRIMARY KEY,
			query_text    VARCHAR NOT NULL,
			sources       VARCHAR,
			routing_mode  VARCHAR,
			result_count  INTEGER,
			policy_action VARCHAR,
			degraded      BOOLEAN,
			duration_ms   BIGINT,
			created_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS policy_audit (
			id           VARCHAR PRIMARY KEY,
			request_id   VARCHAR NOT NULL,
			chunk_id     VARCHAR NOT NULL,
			violation    VARCHAR NOT NULL,
			action       VARCHAR NOT NULL,
			created_at   TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := w.db.Exec(stmt); err != nil {
			return fmt.Errorf("warehouse schema: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying handle for the audit store, which shares the
// warehouse database file.
func (w *Warehouse) DB() *sql.DB { return w.db }

// UpsertVideo projects the catalog record into the warehouse.
func (w *Warehouse) UpsertVideo(ctx context.Context, video *models.Video) error {
	start := time.Now()
	_, err := w.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO videos
			(video_id, channel_id, title, published_at, duration_sec, source, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		video.VideoID, video.ChannelID, video.Title, video.PublishedAt.UTC(),
		video.DurationSec, string(video.Source), string(video.Status), time.Now().UTC(),
	)
	if err != nil {
		wrapped := models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("warehouse video upsert %s: %w", video.VideoID, err))
		metrics.RecordSinkWrite(SinkStructured, time.Since(start), wrapped)
		return wrapped
	}
	metrics.RecordSinkWrite(SinkStructured, time.Since(start), nil)
	return nil
}

// WriteChunks upserts chunk metadata rows, skipping unchanged digests.
func (w *Warehouse) WriteChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	start := time.Now()
	existing, err := w.existingDigests(ctx, chunks[0].VideoID)
	if err != nil {
		metrics.RecordSinkWrite(SinkStructured, time.Since(start), err)
		return err
	}

	for _, ch := range chunks {
		if existing[ch.ChunkID] == ch.ContentSHA256 {
			metrics.ChunksSkipped.Inc()
			continue
		}
		_, err := w.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO chunks
				(chunk_id, video_id, ordinal, content_sha256, preview, token_count, title, channel_id, published_at, duration_sec)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ch.ChunkID, ch.VideoID, ch.Ordinal, ch.ContentSHA256, ch.Preview(), ch.TokenCount,
			ch.Title, ch.ChannelID, ch.PublishedAt.UTC(), ch.DurationSec,
		)
		if err != nil {
			wrapped := models.NewTransient(models.ErrTypeSinkUnavailable,
				fmt.Errorf("warehouse chunk upsert %s: %w", ch.ChunkID, err))
			metrics.RecordSinkWrite(SinkStructured, time.Since(start), wrapped)
			return wrapped
		}
	}
	metrics.RecordSinkWrite(SinkStructured, time.Since(start), nil)
	return nil
}

// DeleteVideo removes the video's chunk rows. The videos row stays; it
// reflects catalog state, not index membership.
func (w *Warehouse) DeleteVideo(ctx context.Context, videoID string) error {
	if _, err := w.db.ExecContext(ctx, "DELETE FROM chunks WHERE video_id = ?", videoID); err != nil {
		return models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("warehouse delete %s: %w", videoID, err))
	}
	return nil
}

// Search answers the structured source: chunks matching the metadata
// filters, with title terms as a weak relevance signal, newest first.
// Recency supplies the score so ranks are deterministic.
func (w *Warehouse) Search(ctx context.Context, query string, topK int, f Filters) ([]Hit, error) {
	conds := []string{}
	args := []any{}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) > 0 {
		termConds := make([]string, len(terms))
		for i, term := range terms {
			termConds[i] = "(contains(lower(title), ?) OR contains(lower(preview), ?))"
			args = append(args, term, term)
		}
		conds = append(conds, "("+strings.Join(termConds, " OR ")+")")
	}
	conds, args = filterClause(f, conds, args)

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, topK)

	q := fmt.Sprintf(`
		SELECT chunk_id, video_id, preview, title, channel_id, published_at,
		       epoch(published_at) / 86400.0 AS score
		FROM chunks
		%s
		ORDER BY published_at DESC, chunk_id ASC
		LIMIT ?`, where)

	rows, err := w.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("structured search: %w", err))
	}
	defer func() { _ = rows.Close() }()
	return scanHits(rows)
}

// RecordEvent appends a pipeline event row. Event IDs are unique per
// publish, so at-least-once consumers can insert idempotently.
func (w *Warehouse) RecordEvent(ctx context.Context, eventID, eventType, videoID, runID string, payload []byte, occurredAt time.Time) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pipeline_events
			(event_id, event_type, video_id, run_id, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, eventType, videoID, runID, string(payload), occurredAt.UTC(),
	)
	if err != nil {
		return models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("warehouse event %s: %w", eventID, err))
	}
	return nil
}

// CountEvents returns event counts grouped by type since the given time.
func (w *Warehouse) CountEvents(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT event_type, count(*) FROM pipeline_events
		WHERE occurred_at >= ? GROUP BY event_type`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("warehouse event counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var n int
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, err
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}

// Ping verifies the sink is reachable and updates its health gauge.
func (w *Warehouse) Ping(ctx context.Context) error {
	err := w.db.PingContext(ctx)
	metrics.SetSinkHealth(SinkStructured, err == nil)
	return err
}

// Close releases the database handle.
func (w *Warehouse) Close() error {
	metrics.SetSinkHealth(SinkStructured, false)
	return w.db.Close()
}

func (w *Warehouse) existingDigests(ctx context.Context, videoID string) (map[string]string, error) {
	rows, err := w.db.QueryContext(ctx,
		"SELECT chunk_id, content_sha256 FROM chunks WHERE video_id = ?", videoID)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("warehouse digest lookup %s: %w", videoID, err))
	}
	defer func() { _ = rows.Close() }()

	digests := make(map[string]string)
	for rows.Next() {
		var id, sha string
		if err := rows.Scan(&id, &sha); err != nil {
			return nil, err
		}
		digests[id] = sha
	}
	return digests, rows.Err()
}
