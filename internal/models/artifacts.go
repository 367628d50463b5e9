// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package models

import "time"

// ArtifactKind names the persisted artifact flavors. Blob filenames follow
// <video_id>_<YYYY-MM-DD>_<kind>.<ext>.
type ArtifactKind string

const (
	ArtifactTranscriptText ArtifactKind = "transcript_txt"
	ArtifactTranscriptJSON ArtifactKind = "transcript_json"
	ArtifactSummaryMD      ArtifactKind = "summary_md"
	ArtifactSummaryJSON    ArtifactKind = "summary_json"
)

// Ext returns the file extension for the artifact kind.
func (k ArtifactKind) Ext() string {
	switch k {
	case ArtifactTranscriptText:
		return "txt"
	case ArtifactSummaryMD:
		return "md"
	default:
		return "json"
	}
}

// Transcript is the committed speech-to-text result for a video. At most one
// Transcript exists per video; replacement requires a changed ContentDigest.
type Transcript struct {
	VideoID       string            `json:"video_id"`
	ArtifactRefs  map[string]string `json:"artifact_refs"`
	ContentDigest string            `json:"content_digest"`
	CostUSD       float64           `json:"cost_usd"`
	Language      string            `json:"language"`
	DurationSec   int               `json:"duration_sec"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TokenUsage tracks LLM token consumption for a summary.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
}

// Summary is the committed LLM summary of a transcript. Requires the
// Transcript to exist first.
type Summary struct {
	VideoID      string            `json:"video_id"`
	Bullets      []string          `json:"bullets"`
	Concepts     []string          `json:"concepts"`
	PromptID     string            `json:"prompt_id"`
	TokenUsage   TokenUsage        `json:"token_usage"`
	ArtifactRefs map[string]string `json:"artifact_refs"`
	CreatedAt    time.Time         `json:"created_at"`
}
