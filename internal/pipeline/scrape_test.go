// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/ledger"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/providers"
)

type fakeLister struct {
	videos []models.Video
	units  float64
	err    error
}

func (f *fakeLister) ListRecent(_ context.Context, _ time.Time, _ int) ([]models.Video, float64, error) {
	return f.videos, f.units, f.err
}

type fakeSheet struct {
	rows    []models.Video
	rowErrs []providers.RowError
	err     error
}

func (f *fakeSheet) ReadBackfill(_ context.Context) ([]models.Video, []providers.RowError, error) {
	return f.rows, f.rowErrs, f.err
}

func listedVideo(id string, durationSec int) models.Video {
	return models.Video{
		VideoID:     id,
		ChannelID:   "UC_test",
		Title:       "Listed " + id,
		PublishedAt: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
		DurationSec: durationSec,
		Source:      models.SourceChannelScrape,
	}
}

func TestScraperQueuesDiscoveries(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	led, err := ledger.New(s, ledger.Config{Timezone: "UTC", TranscriptionDailyUSD: 5, YouTubeDailyUnits: 10000})
	if err != nil {
		t.Fatalf("ledger.New(): %v", err)
	}
	ctx := context.Background()

	lister := &fakeLister{
		videos: []models.Video{
			listedVideo("vid_1", 600),
			listedVideo("vid_2", 1200),
			listedVideo("vid_long", 99999),
		},
		units: 100,
	}
	sheet := &fakeSheet{
		rows: []models.Video{{
			VideoID:     "vid_sheet",
			ChannelID:   "UC_test",
			Title:       "Backfill",
			PublishedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			DurationSec: 900,
			Source:      models.SourceSheetBackfill,
		}},
		rowErrs: []providers.RowError{{Line: 4, Reason: "bad duration"}},
	}

	scraper := NewScraper(cat, led, lister, sheet)
	plan := models.RunPlan{RunID: "run_test", WindowDays: 7, PerChannelLimit: 10}

	report, err := scraper.Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if report.Queued != 3 {
		t.Errorf("queued = %d, want 3", report.Queued)
	}
	if report.Rejected != 1 {
		t.Errorf("rejected = %d, want 1 (duration filter)", report.Rejected)
	}
	if len(report.RowErrors) != 1 {
		t.Errorf("row errors = %d, want 1", len(report.RowErrors))
	}
	if report.QuotaUnits != 100 {
		t.Errorf("quota units = %v, want 100", report.QuotaUnits)
	}

	for _, id := range []string{"vid_1", "vid_2", "vid_sheet"} {
		v, err := cat.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if v.Status != models.StatusTranscriptionQueued {
			t.Errorf("%s status = %s, want transcription_queued", id, v.Status)
		}
	}

	// Re-running the same discovery only refreshes metadata.
	report2, err := scraper.Run(ctx, plan)
	if err != nil {
		t.Fatalf("second Run(): %v", err)
	}
	if report2.Queued != 0 {
		t.Errorf("second run queued = %d, want 0", report2.Queued)
	}
	if report2.Refreshed != 3 {
		t.Errorf("second run refreshed = %d, want 3", report2.Refreshed)
	}
}

func TestScraperSheetBackfillSurvivesListingFailure(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	led, err := ledger.New(s, ledger.Config{Timezone: "UTC", TranscriptionDailyUSD: 5, YouTubeDailyUnits: 10000})
	if err != nil {
		t.Fatalf("ledger.New(): %v", err)
	}
	ctx := context.Background()

	lister := &fakeLister{err: errors.New("listing API down")}
	sheet := &fakeSheet{
		rows: []models.Video{{
			VideoID:     "vid_sheet_only",
			ChannelID:   "UC_test",
			Title:       "Backfill survivor",
			PublishedAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			DurationSec: 600,
			Source:      models.SourceSheetBackfill,
		}},
	}

	scraper := NewScraper(cat, led, lister, sheet)
	report, err := scraper.Run(ctx, models.RunPlan{RunID: "run_p", WindowDays: 7, PerChannelLimit: 10})
	if err == nil {
		t.Fatal("expected partial error")
	}
	if models.Classify(err).Kind != models.ErrKindPartial {
		t.Errorf("kind = %s, want partial", models.Classify(err).Kind)
	}
	if report.Queued != 1 {
		t.Errorf("queued = %d, want 1 sheet discovery", report.Queued)
	}
	v, err := cat.Get(ctx, "vid_sheet_only")
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if v.Status != models.StatusTranscriptionQueued {
		t.Errorf("status = %s, want transcription_queued", v.Status)
	}

	// Both sources down is a failed pass, not a partial one.
	scraper = NewScraper(cat, led, lister, &fakeSheet{err: errors.New("sheet down")})
	_, err = scraper.Run(ctx, models.RunPlan{RunID: "run_f", WindowDays: 7, PerChannelLimit: 10})
	if err == nil {
		t.Fatal("expected error")
	}
	if models.Classify(err).Kind == models.ErrKindPartial {
		t.Error("both sources failing must not report partial")
	}
}

func TestScraperRejectsWhenQuotaExhausted(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	led, err := ledger.New(s, ledger.Config{Timezone: "UTC", TranscriptionDailyUSD: 5, YouTubeDailyUnits: 50})
	if err != nil {
		t.Fatalf("ledger.New(): %v", err)
	}
	ctx := context.Background()

	if err := led.Record(ctx, ledger.ServiceYouTube, 50, 0); err != nil {
		t.Fatalf("Record(): %v", err)
	}

	scraper := NewScraper(cat, led, &fakeLister{}, nil)
	_, err = scraper.Run(ctx, models.RunPlan{RunID: "run_q", WindowDays: 7, PerChannelLimit: 10})
	if err == nil {
		t.Fatal("expected quota error")
	}
	if models.Classify(err).Kind != models.ErrKindQuotaExceeded {
		t.Errorf("kind = %s, want quota_exceeded", models.Classify(err).Kind)
	}
}
