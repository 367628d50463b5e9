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

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// KeywordSink stores full chunk text and answers lexical queries. With the
// fts extension queries rank by BM25; without it a LIKE-based term counter
// keeps keyword search alive in degraded form.
type KeywordSink struct {
	db  *sql.DB
	fts bool
}

// NewKeywordSink opens the keyword database and ensures its schema.
func NewKeywordSink(path string) (*KeywordSink, error) {
	db, err := openDuckDB(path)
	if err != nil {
		return nil, err
	}

	s := &KeywordSink{db: db, fts: loadExtension(db, "fts")}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.SetSinkHealth(SinkKeyword, true)
	return s, nil
}

func (s *KeywordSink) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			chunk_id       VARCHAR PRIMARY KEY,
			video_id       VARCHAR NOT NULL,
			ordinal        INTEGER NOT NULL,
			content_sha256 VARCHAR NOT NULL,
			text           VARCHAR NOT NULL,
			title          VARCHAR,
			channel_id     VARCHAR,
			published_at   TIMESTAMP,
			duration_sec   INTEGER
		)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("keyword schema: %w", err)
	}
	if s.fts {
		s.rebuildIndex()
	}
	return nil
}

// rebuildIndex recreates the FTS index over the current table contents.
// DuckDB's FTS index is a snapshot, so writes schedule a rebuild.
func (s *KeywordSink) rebuildIndex() {
	_, err := s.db.Exec("PRAGMA create_fts_index('chunks', 'chunk_id', 'text', 'title', overwrite = 1)")
	if err != nil {
		logging.Warn().Err(err).Msg("fts index rebuild failed, degrading to term scan")
		s.fts = false
	}
}

// WriteChunks upserts chunk texts, skipping rows whose digest is unchanged,
// and refreshes the FTS index when anything was written.
func (s *KeywordSink) WriteChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	start := time.Now()
	existing, err := s.existingDigests(ctx, chunks[0].VideoID)
	if err != nil {
		metrics.RecordSinkWrite(SinkKeyword, time.Since(start), err)
		return err
	}

	written := 0
	for _, ch := range chunks {
		if existing[ch.ChunkID] == ch.ContentSHA256 {
			metrics.ChunksSkipped.Inc()
			continue
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO chunks
				(chunk_id, video_id, ordinal, content_sha256, text, title, channel_id, published_at, duration_sec)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ch.ChunkID, ch.VideoID, ch.Ordinal, ch.ContentSHA256, ch.Text,
			ch.Title, ch.ChannelID, ch.PublishedAt.UTC(), ch.DurationSec,
		)
		if err != nil {
			wrapped := models.NewTransient(models.ErrTypeSinkUnavailable,
				fmt.Errorf("keyword upsert %s: %w", ch.ChunkID, err))
			metrics.RecordSinkWrite(SinkKeyword, time.Since(start), wrapped)
			return wrapped
		}
		written++
	}

	if written > 0 && s.fts {
		s.rebuildIndex()
	}
	metrics.RecordSinkWrite(SinkKeyword, time.Since(start), nil)
	return nil
}

// DeleteVideo removes every chunk row for the video and refreshes the index.
func (s *KeywordSink) DeleteVideo(ctx context.Context, videoID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE video_id = ?", videoID); err != nil {
		return models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("keyword delete %s: %w", videoID, err))
	}
	if s.fts {
		s.rebuildIndex()
	}
	return nil
}

// Search returns the topK best lexical matches for the query.
func (s *KeywordSink) Search(ctx context.Context, query string, topK int, f Filters) ([]Hit, error) {
	if s.fts {
		return s.searchBM25(ctx, query, topK, f)
	}
	return s.searchScan(ctx, query, topK, f)
}

func (s *KeywordSink) searchBM25(ctx context.Context, query string, topK int, f Filters) ([]Hit, error) {
	conds := []string{"score IS NOT NULL"}
	args := []any{query}
	conds, args = filterClause(f, conds, args)
	args = append(args, topK)

	q := fmt.Sprintf(`
		SELECT chunk_id, video_id, substr(text, 1, 256) AS preview, title, channel_id, published_at, score
		FROM (
			SELECT *, fts_main_chunks.match_bm25(chunk_id, ?) AS score FROM chunks
		)
		WHERE %s
		ORDER BY score DESC
		LIMIT ?`, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("keyword bm25 search: %w", err))
	}
	defer func() { _ = rows.Close() }()
	return scanHits(rows)
}

// searchScan is the degraded path: score by total term occurrences across
// text and title. Crude, but keeps the keyword source answering while the
// fts extension is unavailable.
func (s *KeywordSink) searchScan(ctx context.Context, query string, topK int, f Filters) ([]Hit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	scoreParts := make([]string, len(terms))
	args := make([]any, 0, len(terms)*2+4)
	for i, term := range terms {
		scoreParts[i] = "(length(lower(text)) - length(replace(lower(text), ?, ''))) / length(?)"
		args = append(args, term, term)
	}

	conds := []string{"score > 0"}
	conds, args = filterClause(f, conds, args)
	args = append(args, topK)

	q := fmt.Sprintf(`
		SELECT chunk_id, video_id, substr(text, 1, 256) AS preview, title, channel_id, published_at, score
		FROM (
			SELECT *, CAST(%s AS DOUBLE) AS score FROM chunks
		)
		WHERE %s
		ORDER BY score DESC
		LIMIT ?`, strings.Join(scoreParts, " + "), strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("keyword scan search: %w", err))
	}
	defer func() { _ = rows.Close() }()
	return scanHits(rows)
}

// Ping verifies the sink is reachable and updates its health gauge.
func (s *KeywordSink) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	metrics.SetSinkHealth(SinkKeyword, err == nil)
	return err
}

// Close releases the database handle.
func (s *KeywordSink) Close() error {
	metrics.SetSinkHealth(SinkKeyword, false)
	return s.db.Close()
}

func (s *KeywordSink) existingDigests(ctx context.Context, videoID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, content_sha256 FROM chunks WHERE video_id = ?", videoID)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("keyword digest lookup %s: %w", videoID, err))
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
