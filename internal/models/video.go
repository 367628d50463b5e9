// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package models defines the shared domain types for the ingestion pipeline
// and the retrieval engine. The catalog owns Video/Transcript/Summary
// mutations; everything else references entities through their stable IDs.
package models

import (
	"fmt"
	"time"
)

// VideoSource identifies where a video was discovered.
type VideoSource string

const (
	// SourceChannelScrape marks videos found by listing a channel's uploads.
	SourceChannelScrape VideoSource = "channel_scrape"

	// SourceSheetBackfill marks videos supplied through the operator sheet.
	SourceSheetBackfill VideoSource = "sheet_backfill"
)

// VideoStatus is the pipeline position of a video. Transitions are monotone
// along the declared order; any status may jump to StatusFailed.
type VideoStatus string

const (
	StatusDiscovered          VideoStatus = "discovered"
	StatusTranscriptionQueued VideoStatus = "transcription_queued"
	StatusTranscribed         VideoStatus = "transcribed"
	StatusSummarized          VideoStatus = "summarized"
	StatusIndexed             VideoStatus = "indexed"
	StatusFailed              VideoStatus = "failed"
)

// statusRank orders the forward progression. StatusFailed is reachable from
// every rank and deliberately has no forward rank of its own.
var statusRank = map[VideoStatus]int{
	StatusDiscovered:          0,
	StatusTranscriptionQueued: 1,
	StatusTranscribed:         2,
	StatusSummarized:          3,
	StatusIndexed:             4,
}

// Valid reports whether s is a known status.
func (s VideoStatus) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Rank returns the forward progression rank, or -1 for StatusFailed and
// unknown statuses.
func (s VideoStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next respects the state
// machine: one step forward along the declared order, or a jump to failed.
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	if next == StatusFailed {
		return s != StatusFailed
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to == from+1
}

// AtLeast reports whether s has progressed to at least other. Failed never
// counts as progress.
func (s VideoStatus) AtLeast(other VideoStatus) bool {
	return s.Rank() >= other.Rank() && s != StatusFailed
}

// Video is the primary pipeline record. The external video_id is the primary
// key across all stages and indices.
type Video struct {
	VideoID     string      `json:"video_id"`
	ChannelID   string      `json:"channel_id"`
	Title       string      `json:"title"`
	PublishedAt time.Time   `json:"published_at"`
	DurationSec int         `json:"duration_sec"`
	Source      VideoSource `json:"source"`
	Status      VideoStatus `json:"status"`
	RetryCount  int         `json:"retry_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Validate checks the structural invariants that hold for every persisted
// Video. Duration limits are enforced at discovery, not here.
func (v *Video) Validate() error {
	if v.VideoID == "" {
		return fmt.Errorf("video: missing video_id")
	}
	if v.ChannelID == "" {
		return fmt.Errorf("video %s: missing channel_id", v.VideoID)
	}
	if v.DurationSec < 0 {
		return fmt.Errorf("video %s: negative duration %d", v.VideoID, v.DurationSec)
	}
	if !v.Status.Valid() {
		return fmt.Errorf("video %s: unknown status %q", v.VideoID, v.Status)
	}
	switch v.Source {
	case SourceChannelScrape, SourceSheetBackfill:
	default:
		return fmt.Errorf("video %s: unknown source %q", v.VideoID, v.Source)
	}
	return nil
}
