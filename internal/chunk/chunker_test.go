// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package chunk

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/scriptorium/internal/models"
)

func testVideo() *models.Video {
	return &models.Video{
		VideoID:     "yt_abc123",
		ChannelID:   "UCtest",
		Title:       "Pricing strategy deep dive",
		PublishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DurationSec: 1800,
		Source:      models.SourceChannelScrape,
		Status:      models.StatusSummarized,
	}
}

func newTestChunker(t *testing.T, maxTokens, overlap int) *Chunker {
	t.Helper()
	c, err := New(Config{MaxTokensPerChunk: maxTokens, OverlapTokens: overlap, Encoding: "cl100k_base"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero max", Config{MaxTokensPerChunk: 0, OverlapTokens: 0}},
		{"overlap equals max", Config{MaxTokensPerChunk: 100, OverlapTokens: 100}},
		{"negative overlap", Config{MaxTokensPerChunk: 100, OverlapTokens: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() = nil error, want rejection")
			}
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	t.Parallel()

	c := newTestChunker(t, 100, 10)
	for _, text := range []string{"", "   \n\t  "} {
		if _, err := c.Split(testVideo(), text); !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("Split(%q) error = %v, want ErrEmptyTranscript", text, err)
		}
	}
}

func TestSplitSingleChunk(t *testing.T) {
	t.Parallel()

	c := newTestChunker(t, 1000, 100)
	chunks, err := c.Split(testVideo(), "a short transcript that fits in one window")
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	ch := chunks[0]
	if ch.ChunkID != "yt_abc123_chunk_1" {
		t.Errorf("chunk_id = %s, want yt_abc123_chunk_1", ch.ChunkID)
	}
	if ch.Ordinal != 1 {
		t.Errorf("ordinal = %d, want 1", ch.Ordinal)
	}
	if ch.TokenCount < 1 || ch.TokenCount > 1000 {
		t.Errorf("token count = %d, want within (0,1000]", ch.TokenCount)
	}
	if ch.ChannelID != "UCtest" || ch.Title == "" {
		t.Error("chunk should carry denormalized video metadata")
	}
	if ch.ContentSHA256 != DigestText(ch.Text) {
		t.Error("content digest should be sha256 of chunk text")
	}
}

func TestSplitWindowing(t *testing.T) {
	t.Parallel()

	c := newTestChunker(t, 50, 10)
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "word%d ", i)
	}

	chunks, err := c.Split(testVideo(), sb.String())
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want multiple", len(chunks))
	}

	for i, ch := range chunks {
		if want := i + 1; ch.Ordinal != want {
			t.Errorf("chunk %d ordinal = %d, want contiguous %d", i, ch.Ordinal, want)
		}
		if ch.TokenCount > 50 {
			t.Errorf("chunk %d token count = %d, exceeds max 50", i, ch.TokenCount)
		}
		if i < len(chunks)-1 && ch.TokenCount != 50 {
			t.Errorf("non-final chunk %d token count = %d, want full window", i, ch.TokenCount)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	t.Parallel()

	c := newTestChunker(t, 40, 8)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)

	first, err := c.Split(testVideo(), text)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	second, err := c.Split(testVideo(), text)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID || first[i].ContentSHA256 != second[i].ContentSHA256 {
			t.Errorf("chunk %d differs across runs", i)
		}
	}
}

func TestSplitOverlapCarriesText(t *testing.T) {
	t.Parallel()

	c := newTestChunker(t, 30, 10)
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&sb, "tok%d ", i)
	}

	chunks, err := c.Split(testVideo(), sb.String())
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatal("need multiple chunks to observe overlap")
	}

	// The tail of each window reappears at the head of the next.
	tail := chunks[0].Text[len(chunks[0].Text)/2:]
	joined := chunks[1].Text
	overlapFound := false
	for i := 0; i < len(tail)-4; i++ {
		if strings.Contains(joined, tail[i:i+5]) {
			overlapFound = true
			break
		}
	}
	if !overlapFound {
		t.Error("consecutive chunks share no text despite configured overlap")
	}
}

func TestCountTokens(t *testing.T) {
	t.Parallel()

	c := newTestChunker(t, 100, 0)
	if got := c.CountTokens(""); got != 0 {
		t.Errorf("CountTokens(empty) = %d, want 0", got)
	}
	if got := c.CountTokens("hello world"); got < 1 {
		t.Errorf("CountTokens(hello world) = %d, want positive", got)
	}
}
