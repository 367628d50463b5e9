// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// sheetColumns is the required header, in order.
var sheetColumns = []string{"video_id", "channel_id", "title", "published_at", "duration_sec"}

// SheetReader supplies operator-curated backfill videos.
type SheetReader interface {
	// ReadBackfill fetches and parses the sheet. Malformed rows are skipped
	// and reported; only a completely unreadable sheet is an error.
	ReadBackfill(ctx context.Context) ([]models.Video, []RowError, error)
}

// RowError reports one skipped sheet row.
type RowError struct {
	Line   int
	Reason string
}

// SheetConfig configures the backfill sheet client.
type SheetConfig struct {
	URL     string
	Timeout time.Duration
}

// SheetClient fetches a published CSV of videos the operator wants ingested
// outside the scrape window.
type SheetClient struct {
	cfg        SheetConfig
	httpClient *http.Client
}

var _ SheetReader = (*SheetClient)(nil)

// NewSheetClient builds the sheet client.
func NewSheetClient(cfg SheetConfig) *SheetClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SheetClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ReadBackfill downloads and parses the sheet CSV.
func (c *SheetClient) ReadBackfill(ctx context.Context) ([]models.Video, []RowError, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, nil, models.NewTerminal(models.ErrTypeInvalidInput, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderRequest("sheet", "failure", time.Since(start))
		return nil, nil, classifyHTTPErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordProviderRequest("sheet", "failure", time.Since(start))
		return nil, nil, classifyStatus("sheet", resp)
	}

	videos, rowErrs, err := parseSheet(resp.Body)
	if err != nil {
		metrics.RecordProviderRequest("sheet", "failure", time.Since(start))
		return nil, nil, err
	}
	metrics.RecordProviderRequest("sheet", "success", time.Since(start))

	for _, re := range rowErrs {
		logging.Warn().Int("line", re.Line).Str("reason", re.Reason).Msg("sheet row skipped")
	}
	return videos, rowErrs, nil
}

// parseSheet reads the CSV, validating the header and each row. Row-level
// problems never abort the whole sheet; one bad line must not block the
// operator's other backfills.
func parseSheet(r io.Reader) ([]models.Video, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(sheetColumns)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, models.NewTerminal(models.ErrTypePoisonPayload, fmt.Errorf("read sheet header: %w", err))
	}
	for i, col := range sheetColumns {
		if i >= len(header) || !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return nil, nil, models.NewTerminal(models.ErrTypePoisonPayload,
				fmt.Errorf("sheet header mismatch: want %v, got %v", sheetColumns, header))
		}
	}

	var (
		videos  []models.Video
		rowErrs []RowError
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: err.Error()})
			continue
		}

		video, reason := parseSheetRow(record)
		if reason != "" {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: reason})
			continue
		}
		videos = append(videos, video)
	}
	return videos, rowErrs, nil
}

func parseSheetRow(record []string) (models.Video, string) {
	videoID := strings.TrimSpace(record[0])
	channelID := strings.TrimSpace(record[1])
	if videoID == "" || channelID == "" {
		return models.Video{}, "missing video_id or channel_id"
	}

	publishedAt, err := parseSheetTime(strings.TrimSpace(record[3]))
	if err != nil {
		return models.Video{}, fmt.Sprintf("bad published_at: %v", err)
	}

	durationSec, err := strconv.Atoi(strings.TrimSpace(record[4]))
	if err != nil || durationSec < 0 {
		return models.Video{}, fmt.Sprintf("bad duration_sec %q", record[4])
	}

	return models.Video{
		VideoID:     videoID,
		ChannelID:   channelID,
		Title:       strings.TrimSpace(record[2]),
		PublishedAt: publishedAt,
		DurationSec: durationSec,
		Source:      models.SourceSheetBackfill,
	}, ""
}

func parseSheetTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
