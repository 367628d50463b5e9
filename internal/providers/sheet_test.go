// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/scriptorium/internal/models"
)

const goodSheet = `video_id,channel_id,title,published_at,duration_sec
v1,UC1,First video,2026-03-01,600
v2,UC1,Second video,2026-03-02T10:00:00Z,1200
`

func TestParseSheet(t *testing.T) {
	t.Parallel()

	videos, rowErrs, err := parseSheet(strings.NewReader(goodSheet))
	if err != nil {
		t.Fatalf("parseSheet() error: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Errorf("row errors = %+v, want none", rowErrs)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}
	if videos[0].Source != models.SourceSheetBackfill {
		t.Errorf("source = %s, want sheet_backfill", videos[0].Source)
	}
	if videos[1].DurationSec != 1200 {
		t.Errorf("duration = %d", videos[1].DurationSec)
	}
}

func TestParseSheetSkipsBadRows(t *testing.T) {
	t.Parallel()

	sheet := `video_id,channel_id,title,published_at,duration_sec
v1,UC1,Good,2026-03-01,600
,UC1,Missing ID,2026-03-01,600
v3,UC1,Bad date,not-a-date,600
v4,UC1,Bad duration,2026-03-01,minus
v5,UC1,Also good,2026-03-02,300
`
	videos, rowErrs, err := parseSheet(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("parseSheet() error: %v", err)
	}
	if len(videos) != 2 {
		t.Errorf("got %d videos, want 2 good rows", len(videos))
	}
	if len(rowErrs) != 3 {
		t.Fatalf("got %d row errors, want 3: %+v", len(rowErrs), rowErrs)
	}
	if rowErrs[0].Line != 3 {
		t.Errorf("first bad line = %d, want 3", rowErrs[0].Line)
	}
}

func TestParseSheetRejectsBadHeader(t *testing.T) {
	t.Parallel()

	sheet := "id,channel,name\n1,2,3\n"
	_, _, err := parseSheet(strings.NewReader(sheet))
	if err == nil {
		t.Fatal("parseSheet() = nil error for bad header")
	}

	var ce *models.ClassifiedError
	if !errors.As(err, &ce) || ce.ErrorType != models.ErrTypePoisonPayload {
		t.Errorf("error = %v, want poison_payload classification", err)
	}
}

func TestReadBackfill(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(goodSheet))
	}))
	defer srv.Close()

	c := NewSheetClient(SheetConfig{URL: srv.URL})
	videos, rowErrs, err := c.ReadBackfill(context.Background())
	if err != nil {
		t.Fatalf("ReadBackfill() error: %v", err)
	}
	if len(videos) != 2 || len(rowErrs) != 0 {
		t.Errorf("ReadBackfill() = %d videos, %d row errors", len(videos), len(rowErrs))
	}
}

func TestReadBackfillServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewSheetClient(SheetConfig{URL: srv.URL})
	_, _, err := c.ReadBackfill(context.Background())
	if err == nil {
		t.Fatal("ReadBackfill() = nil error")
	}
	var ce *models.ClassifiedError
	if !errors.As(err, &ce) || ce.Kind != models.ErrKindTransient {
		t.Errorf("error = %v, want transient classification", err)
	}
}
