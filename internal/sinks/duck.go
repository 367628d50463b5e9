// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package sinks

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver

	"github.com/tomtom215/scriptorium/internal/logging"
)

// Sink names used in metrics, health reporting, and routing decisions.
const (
	SinkSemantic   = "semantic"
	SinkKeyword    = "keyword"
	SinkStructured = "structured"
)

// Hit is one retrieval result from any sink, before fusion.
type Hit struct {
	ChunkID     string    `json:"chunk_id"`
	VideoID     string    `json:"video_id"`
	Score       float64   `json:"score"`
	Preview     string    `json:"preview"`
	Title       string    `json:"title"`
	ChannelID   string    `json:"channel_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Filters narrows a sink query by denormalized chunk metadata. Zero values
// match everything.
type Filters struct {
	ChannelID       string
	PublishedAfter  time.Time
	PublishedBefore time.Time
	MaxDurationSec  int
}

// openDuckDB opens (or creates) a DuckDB database file with the standard
// connection settings. Auto-install of known extensions stays off; loading
// is explicit so degradation is observable.
func openDuckDB(path string) (*sql.DB, error) {
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, max(2, runtime.NumCPU()/2))

	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	db.SetMaxOpenConns(max(2, runtime.NumCPU()/2))
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %s: %w", path, err)
	}
	return db, nil
}

// loadExtension tries INSTALL then LOAD, returning whether the extension is
// usable. A failure only disables the fast path; callers must keep a
// core-SQL fallback.
func loadExtension(db *sql.DB, name string) bool {
	if _, err := db.Exec("INSTALL " + name); err != nil {
		logging.Warn().Err(err).Str("extension", name).Msg("duckdb extension install failed")
	}
	if _, err := db.Exec("LOAD " + name); err != nil {
		logging.Warn().Err(err).Str("extension", name).Msg("duckdb extension unavailable, degrading")
		return false
	}
	logging.Debug().Str("extension", name).Msg("duckdb extension loaded")
	return true
}

// vecLiteral renders a float32 vector as a DuckDB array literal for casting
// into FLOAT[n] columns and parameters.
func vecLiteral(vec []float32) string {
	var sb strings.Builder
	sb.Grow(len(vec) * 12)
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// filterClause appends WHERE conditions for the metadata filters.
func filterClause(f Filters, conds []string, args []any) ([]string, []any) {
	if f.ChannelID != "" {
		conds = append(conds, "channel_id = ?")
		args = append(args, f.ChannelID)
	}
	if !f.PublishedAfter.IsZero() {
		conds = append(conds, "published_at >= ?")
		args = append(args, f.PublishedAfter.UTC())
	}
	if !f.PublishedBefore.IsZero() {
		conds = append(conds, "published_at < ?")
		args = append(args, f.PublishedBefore.UTC())
	}
	if f.MaxDurationSec > 0 {
		conds = append(conds, "duration_sec <= ?")
		args = append(args, f.MaxDurationSec)
	}
	return conds, args
}
