// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/ledger"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/providers"
)

// listingPageUnits is the quota cost of one listing page, checked before
// any listing call so an exhausted day never burns a partial page.
const listingPageUnits = 100

// Scraper discovers videos from the listing provider and the operator
// backfill sheet, lands them in the catalog, and queues them for
// transcription.
type Scraper struct {
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	lister  providers.Lister
	sheet   providers.SheetReader
}

// NewScraper builds the discovery stage. sheet may be nil when backfill is
// disabled.
func NewScraper(cat *catalog.Catalog, led *ledger.Ledger, lister providers.Lister, sheet providers.SheetReader) *Scraper {
	return &Scraper{catalog: cat, ledger: led, lister: lister, sheet: sheet}
}

// ScrapeReport summarizes one discovery pass.
type ScrapeReport struct {
	Queued     int                  `json:"queued"`
	Refreshed  int                  `json:"refreshed"`
	Rejected   int                  `json:"rejected"`
	SheetRows  int                  `json:"sheet_rows"`
	RowErrors  []providers.RowError `json:"row_errors,omitempty"`
	QuotaUnits float64              `json:"quota_units"`
}

// Run performs discovery for the plan: listing within the lookback window
// and sheet backfill. Both sources are always attempted; one failing while
// the other lands videos is a partial pass, not a failed one. Every landed
// video in discovered status is advanced to transcription_queued.
func (s *Scraper) Run(ctx context.Context, plan models.RunPlan) (*ScrapeReport, error) {
	report := &ScrapeReport{}

	listErr := s.listUploads(ctx, plan, report)
	if listErr != nil {
		logging.Ctx(ctx).Error().Err(listErr).Msg("channel listing failed")
	}

	sheetOK := false
	if s.sheet != nil {
		rows, rowErrs, serr := s.sheet.ReadBackfill(ctx)
		report.RowErrors = rowErrs
		if serr != nil {
			logging.Ctx(ctx).Error().Err(serr).Msg("sheet backfill failed")
		} else {
			sheetOK = true
			report.SheetRows = len(rows)
			s.land(ctx, rows, report)
		}
	}

	if listErr != nil {
		if !sheetOK {
			return report, listErr
		}
		// Sheet discoveries landed; surface the listing failure as partial
		// so the run degrades instead of losing them.
		return report, models.NewPartial(models.Classify(listErr).ErrorType, listErr)
	}

	logging.Ctx(ctx).Info().
		Int("queued", report.Queued).
		Int("refreshed", report.Refreshed).
		Int("rejected", report.Rejected).
		Float64("quota_units", report.QuotaUnits).
		Msg("discovery pass complete")
	return report, nil
}

// listUploads runs the quota-gated channel listing and lands its videos.
func (s *Scraper) listUploads(ctx context.Context, plan models.RunPlan, report *ScrapeReport) error {
	dec, err := s.ledger.Check(ctx, ledger.ServiceYouTube, listingPageUnits)
	if err != nil {
		return fmt.Errorf("listing quota check: %w", err)
	}
	if !dec.Allowed {
		return models.NewQuotaExceeded(
			fmt.Errorf("listing quota exhausted, resets in %.1fh", dec.ResetInHours()))
	}

	since := time.Now().UTC().AddDate(0, 0, -plan.WindowDays)
	videos, units, err := s.lister.ListRecent(ctx, since, plan.PerChannelLimit)
	report.QuotaUnits = units
	if units > 0 {
		if rerr := s.ledger.Record(ctx, ledger.ServiceYouTube, units, 0); rerr != nil {
			logging.Ctx(ctx).Error().Err(rerr).Msg("listing quota record failed")
		}
	}
	if err != nil {
		return fmt.Errorf("list channel uploads: %w", err)
	}

	s.land(ctx, videos, report)
	return nil
}

// land upserts each video and queues fresh discoveries for transcription.
func (s *Scraper) land(ctx context.Context, videos []models.Video, report *ScrapeReport) {
	for _, v := range videos {
		stored, err := s.catalog.UpsertVideo(ctx, v)
		if err != nil {
			if errors.Is(err, catalog.ErrDurationExceeded) {
				report.Rejected++
				continue
			}
			logging.Ctx(ctx).Error().Err(err).Str("video_id", v.VideoID).Msg("video upsert failed")
			report.Rejected++
			continue
		}

		if stored.Status != models.StatusDiscovered {
			report.Refreshed++
			continue
		}
		if _, err := s.catalog.Transition(ctx, stored.VideoID, models.StatusDiscovered, models.StatusTranscriptionQueued); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("video_id", stored.VideoID).Msg("queue transition failed")
			continue
		}
		report.Queued++
	}
}
