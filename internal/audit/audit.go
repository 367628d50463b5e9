// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RetrievalRecord is one audited retrieval request.
type RetrievalRecord struct {
	RequestID    string    `json:"request_id"`
	QueryText    string    `json:"query_text"`
	Sources      []string  `json:"sources"`
	RoutingMode  string    `json:"routing_mode"`
	ResultCount  int       `json:"result_count"`
	PolicyAction string    `json:"policy_action"`
	Degraded     bool      `json:"degraded"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// PolicyRecord is one audited policy violation.
type PolicyRecord struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	ChunkID   string    `json:"chunk_id"`
	Violation string    `json:"violation"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists the retrieval audit trail in the analytics warehouse.
// The warehouse creates the retrieval_audit and policy_audit tables; the
// store only reads and writes them.
type Store struct {
	db *sql.DB
}

// NewStore wraps the warehouse database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordRetrieval writes one retrieval_audit row.
func (s *Store) RecordRetrieval(ctx context.Context, rec RetrievalRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retrieval_audit
			(request_id, query_text, sources, routing_mode, result_count, policy_action, degraded, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.QueryText, strings.Join(rec.Sources, ","), rec.RoutingMode,
		rec.ResultCount, rec.PolicyAction, rec.Degraded, rec.DurationMS, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert retrieval audit: %w", err)
	}
	return nil
}

// RecordPolicyViolation writes one policy_audit row. Implements the policy
// package's Recorder.
func (s *Store) RecordPolicyViolation(ctx context.Context, requestID, chunkID, violation, action string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policy_audit (id, request_id, chunk_id, violation, action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), requestID, chunkID, violation, action, at)
	if err != nil {
		return fmt.Errorf("insert policy audit: %w", err)
	}
	return nil
}

// RecentRetrievals returns the newest retrieval records, newest first.
func (s *Store) RecentRetrievals(ctx context.Context, limit int) ([]RetrievalRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, query_text, sources, routing_mode, result_count, policy_action, degraded, duration_ms, created_at
		 FROM retrieval_audit ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query retrieval audit: %w", err)
	}
	defer rows.Close()

	var out []RetrievalRecord
	for rows.Next() {
		var rec RetrievalRecord
		var sources string
		if err := rows.Scan(&rec.RequestID, &rec.QueryText, &sources, &rec.RoutingMode,
			&rec.ResultCount, &rec.PolicyAction, &rec.Degraded, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan retrieval audit: %w", err)
		}
		if sources != "" {
			rec.Sources = strings.Split(sources, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PolicyViolations returns the policy rows recorded for one request.
func (s *Store) PolicyViolations(ctx context.Context, requestID string) ([]PolicyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, chunk_id, violation, action, created_at
		 FROM policy_audit WHERE request_id = ? ORDER BY created_at`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query policy audit: %w", err)
	}
	defer rows.Close()

	var out []PolicyRecord
	for rows.Next() {
		var rec PolicyRecord
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.ChunkID, &rec.Violation, &rec.Action, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy audit: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ViolationCounts aggregates policy violations by kind since the cutoff.
func (s *Store) ViolationCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT violation, COUNT(*) FROM policy_audit WHERE created_at >= ? GROUP BY violation`, since)
	if err != nil {
		return nil, fmt.Errorf("count policy audit: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan policy counts: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}
