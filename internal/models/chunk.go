// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PreviewMaxLen bounds text previews stored in the structured sink.
const PreviewMaxLen = 256

// Chunk is a token-bounded slice of a transcript and the unit of indexing
// and retrieval. (video_id, chunk_id) is unique across all three sinks; the
// same logical chunk carries the same ContentSHA256 in every projection.
type Chunk struct {
	VideoID       string    `json:"video_id"`
	ChunkID       string    `json:"chunk_id"`
	Ordinal       int       `json:"ordinal"`
	Text          string    `json:"text"`
	TokenCount    int       `json:"token_count"`
	ContentSHA256 string    `json:"content_sha256"`
	ChannelID     string    `json:"channel_id"`
	Title         string    `json:"title"`
	PublishedAt   time.Time `json:"published_at"`
	DurationSec   int       `json:"duration_sec"`
}

// ChunkID formats the canonical chunk identifier: <video_id>_chunk_<n> with
// n 1-indexed and contiguous per video.
func ChunkID(videoID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", videoID, ordinal)
}

// ParseChunkID splits a chunk identifier into its video ID and ordinal.
func ParseChunkID(chunkID string) (videoID string, ordinal int, err error) {
	idx := strings.LastIndex(chunkID, "_chunk_")
	if idx <= 0 {
		return "", 0, fmt.Errorf("malformed chunk_id %q", chunkID)
	}
	ordinal, err = strconv.Atoi(chunkID[idx+len("_chunk_"):])
	if err != nil || ordinal < 1 {
		return "", 0, fmt.Errorf("malformed chunk_id ordinal in %q", chunkID)
	}
	return chunkID[:idx], ordinal, nil
}

// Preview returns the chunk text truncated to PreviewMaxLen characters.
// Truncation is rune-safe so multi-byte text never splits mid-character.
func (c *Chunk) Preview() string {
	return TruncatePreview(c.Text)
}

// TruncatePreview truncates s to PreviewMaxLen characters.
func TruncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewMaxLen {
		return s
	}
	return string(runes[:PreviewMaxLen])
}
