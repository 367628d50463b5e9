// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/scriptorium/internal/sinks"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	w, err := sinks.NewWarehouse(filepath.Join(t.TempDir(), "warehouse.duckdb"))
	if err != nil {
		t.Fatalf("NewWarehouse() error: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return NewStore(w.DB())
}

func TestRetrievalRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	rec := RetrievalRecord{
		RequestID:    "req_1",
		QueryText:    "why does consensus need quorums",
		Sources:      []string{"semantic", "keyword"},
		RoutingMode:  "adaptive",
		ResultCount:  7,
		PolicyAction: "redact",
		Degraded:     true,
		DurationMS:   42,
	}
	if err := s.RecordRetrieval(ctx, rec); err != nil {
		t.Fatalf("RecordRetrieval() error: %v", err)
	}

	got, err := s.RecentRetrievals(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRetrievals() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	r := got[0]
	if r.RequestID != "req_1" || r.ResultCount != 7 || !r.Degraded {
		t.Errorf("record = %+v", r)
	}
	if len(r.Sources) != 2 || r.Sources[0] != "semantic" {
		t.Errorf("sources = %v", r.Sources)
	}
	if r.CreatedAt.IsZero() {
		t.Error("created_at not defaulted")
	}
}

func TestRecentRetrievalsOrderAndLimit(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := s.RecordRetrieval(ctx, RetrievalRecord{
			RequestID: "req_" + string(rune('a'+i)),
			QueryText: "q",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordRetrieval() error: %v", err)
		}
	}

	got, err := s.RecentRetrievals(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRetrievals() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].RequestID != "req_e" || got[1].RequestID != "req_d" {
		t.Errorf("order = %s, %s", got[0].RequestID, got[1].RequestID)
	}
}

func TestPolicyViolations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.RecordPolicyViolation(ctx, "req_1", "c1", "EMAIL", "redacted", now); err != nil {
		t.Fatalf("RecordPolicyViolation() error: %v", err)
	}
	if err := s.RecordPolicyViolation(ctx, "req_1", "c2", "channel_not_allowed", "filtered", now.Add(time.Second)); err != nil {
		t.Fatalf("RecordPolicyViolation() error: %v", err)
	}
	if err := s.RecordPolicyViolation(ctx, "req_2", "c3", "EMAIL", "redacted", now); err != nil {
		t.Fatalf("RecordPolicyViolation() error: %v", err)
	}

	got, err := s.PolicyViolations(ctx, "req_1")
	if err != nil {
		t.Fatalf("PolicyViolations() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[0].ChunkID != "c1" || got[0].Violation != "EMAIL" {
		t.Errorf("first row = %+v", got[0])
	}

	counts, err := s.ViolationCounts(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ViolationCounts() error: %v", err)
	}
	if counts["EMAIL"] != 2 || counts["channel_not_allowed"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
