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

// SemanticSink stores chunk embeddings and answers nearest-neighbor
// queries by cosine similarity. With the vss extension an HNSW index
// accelerates search; without it the same query runs as a core-SQL scan.
type SemanticSink struct {
	db    *sql.DB
	dims  int
	model string
	vss   bool
}

// NewSemanticSink opens the semantic database and ensures its schema.
// model is the versioned embedding model identifier stamped on every row,
// so vectors from different models are never silently compared.
func NewSemanticSink(path string, dims int, model string) (*SemanticSink, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("semantic sink needs positive dimensions, got %d", dims)
	}
	db, err := openDuckDB(path)
	if err != nil {
		return nil, err
	}

	s := &SemanticSink{db: db, dims: dims, model: model, vss: loadExtension(db, "vss")}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.SetSinkHealth(SinkSemantic, true)
	return s, nil
}

func (s *SemanticSink) ensureSchema() error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			chunk_id       VARCHAR PRIMARY KEY,
			video_id       VARCHAR NOT NULL,
			ordinal        INTEGER NOT NULL,
			content_sha256 VARCHAR NOT NULL,
			preview        VARCHAR,
			title          VARCHAR,
			channel_id     VARCHAR,
			published_at   TIMESTAMP,
			duration_sec   INTEGER,
			embedding_model VARCHAR,
			embedding      FLOAT[%d] NOT NULL
		)`, s.dims)
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("semantic schema: %w", err)
	}

	if s.vss {
		if _, err := s.db.Exec("SET hnsw_enable_experimental_persistence = true"); err != nil {
			logging.Warn().Err(err).Msg("hnsw persistence flag rejected, dropping to scan search")
			s.vss = false
			return nil
		}
		if _, err := s.db.Exec(
			"CREATE INDEX IF NOT EXISTS chunks_hnsw ON chunks USING HNSW (embedding) WITH (metric = 'cosine')"); err != nil {
			logging.Warn().Err(err).Msg("hnsw index creation failed, dropping to scan search")
			s.vss = false
		}
	}
	return nil
}

// WriteChunks upserts chunks with their vectors. Rows whose stored digest
// already matches are skipped.
func (s *SemanticSink) WriteChunks(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("semantic write: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	start := time.Now()
	existing, err := s.existingDigests(ctx, chunks[0].VideoID)
	if err != nil {
		metrics.RecordSinkWrite(SinkSemantic, time.Since(start), err)
		return err
	}

	written := 0
	for i, ch := range chunks {
		if len(vectors[i]) != s.dims {
			err := fmt.Errorf("chunk %s vector width %d, sink expects %d", ch.ChunkID, len(vectors[i]), s.dims)
			metrics.RecordSinkWrite(SinkSemantic, time.Since(start), err)
			return err
		}
		if existing[ch.ChunkID] == ch.ContentSHA256 {
			metrics.ChunksSkipped.Inc()
			continue
		}

		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			INSERT OR REPLACE INTO chunks
				(chunk_id, video_id, ordinal, content_sha256, preview, title, channel_id, published_at, duration_sec, embedding_model, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CAST(? AS FLOAT[%d]))`, s.dims),
			ch.ChunkID, ch.VideoID, ch.Ordinal, ch.ContentSHA256, ch.Preview(),
			ch.Title, ch.ChannelID, ch.PublishedAt.UTC(), ch.DurationSec, s.model, vecLiteral(vectors[i]),
		)
		if err != nil {
			wrapped := models.NewTransient(models.ErrTypeSinkUnavailable,
				fmt.Errorf("semantic upsert %s: %w", ch.ChunkID, err))
			metrics.RecordSinkWrite(SinkSemantic, time.Since(start), wrapped)
			return wrapped
		}
		written++
		metrics.ChunksIndexed.Inc()
	}

	metrics.RecordSinkWrite(SinkSemantic, time.Since(start), nil)
	logging.Ctx(ctx).Debug().
		Str("video_id", chunks[0].VideoID).
		Int("written", written).
		Int("skipped", len(chunks)-written).
		Msg("semantic sink write")
	return nil
}

// DeleteVideo removes every chunk row for the video. Used by replay resets.
func (s *SemanticSink) DeleteVideo(ctx context.Context, videoID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE video_id = ?", videoID); err != nil {
		return models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("semantic delete %s: %w", videoID, err))
	}
	return nil
}

// Search returns the topK nearest chunks to the query vector, most similar
// first. array_cosine_similarity is core DuckDB, so this works with or
// without the HNSW index.
func (s *SemanticSink) Search(ctx context.Context, vector []float32, topK int, f Filters) ([]Hit, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query vector width %d, sink expects %d", len(vector), s.dims)
	}

	conds := []string{}
	args := []any{vecLiteral(vector)}
	conds, args = filterClause(f, conds, args)

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT chunk_id, video_id, preview, title, channel_id, published_at,
		       array_cosine_similarity(embedding, CAST(? AS FLOAT[%d])) AS score
		FROM chunks
		%s
		ORDER BY score DESC
		LIMIT ?`, s.dims, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("semantic search: %w", err))
	}
	defer func() { _ = rows.Close() }()

	return scanHits(rows)
}

// Ping verifies the sink is reachable and updates its health gauge.
func (s *SemanticSink) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	metrics.SetSinkHealth(SinkSemantic, err == nil)
	return err
}

// Close releases the database handle.
func (s *SemanticSink) Close() error {
	metrics.SetSinkHealth(SinkSemantic, false)
	return s.db.Close()
}

func (s *SemanticSink) existingDigests(ctx context.Context, videoID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, content_sha256 FROM chunks WHERE video_id = ?", videoID)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeSinkUnavailable,
			fmt.Errorf("semantic digest lookup %s: %w", videoID, err))
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

// scanHits reads the shared hit column shape used by all sinks.
func scanHits(rows *sql.Rows) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var (
			h           Hit
			preview     sql.NullString
			title       sql.NullString
			channelID   sql.NullString
			publishedAt sql.NullTime
			score       sql.NullFloat64
		)
		if err := rows.Scan(&h.ChunkID, &h.VideoID, &preview, &title, &channelID, &publishedAt, &score); err != nil {
			return nil, err
		}
		h.Preview = preview.String
		h.Title = title.String
		h.ChannelID = channelID.String
		h.PublishedAt = publishedAt.Time
		h.Score = score.Float64
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
