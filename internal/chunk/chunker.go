// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tomtom215/scriptorium/internal/models"
)

// ErrEmptyTranscript is returned when the transcript text contains no tokens.
var ErrEmptyTranscript = errors.New("transcript text is empty")

// Config tunes the token windower.
type Config struct {
	// MaxTokensPerChunk bounds each window.
	MaxTokensPerChunk int

	// OverlapTokens is carried from the tail of each window into the next.
	// Must be strictly smaller than MaxTokensPerChunk.
	OverlapTokens int

	// Encoding names the tiktoken encoding, e.g. cl100k_base.
	Encoding string
}

// Chunker splits transcript text into token-bounded windows using a real
// tokenizer, so chunk sizes line up with what embedding and LLM endpoints
// actually count.
type Chunker struct {
	cfg Config
	enc *tiktoken.Tiktoken
}

// New builds a Chunker for the configured encoding. The encoding tables are
// loaded once and reused across calls.
func New(cfg Config) (*Chunker, error) {
	if cfg.MaxTokensPerChunk < 1 {
		return nil, fmt.Errorf("max tokens per chunk must be positive, got %d", cfg.MaxTokensPerChunk)
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MaxTokensPerChunk {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", cfg.OverlapTokens, cfg.MaxTokensPerChunk)
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "cl100k_base"
	}

	enc, err := tiktoken.GetEncoding(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", cfg.Encoding, err)
	}
	return &Chunker{cfg: cfg, enc: enc}, nil
}

// Split windows the transcript text into chunks carrying the video's
// denormalized metadata. Ordinals are 1-indexed and contiguous; re-running
// Split on identical input yields byte-identical chunks, so indexing stays
// idempotent across replays.
func (c *Chunker) Split(video *models.Video, text string) ([]models.Chunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil, ErrEmptyTranscript
	}

	step := c.cfg.MaxTokensPerChunk - c.cfg.OverlapTokens
	chunks := make([]models.Chunk, 0, 1+len(tokens)/step)

	for start, ordinal := 0, 1; start < len(tokens); start, ordinal = start+step, ordinal+1 {
		end := start + c.cfg.MaxTokensPerChunk
		if end > len(tokens) {
			end = len(tokens)
		}

		window := c.enc.Decode(tokens[start:end])
		sum := sha256.Sum256([]byte(window))

		chunks = append(chunks, models.Chunk{
			VideoID:       video.VideoID,
			ChunkID:       models.ChunkID(video.VideoID, ordinal),
			Ordinal:       ordinal,
			Text:          window,
			TokenCount:    end - start,
			ContentSHA256: hex.EncodeToString(sum[:]),
			ChannelID:     video.ChannelID,
			Title:         video.Title,
			PublishedAt:   video.PublishedAt,
			DurationSec:   video.DurationSec,
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}

// CountTokens returns the token count of text under the configured encoding.
// Used for budget estimation before LLM calls.
func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// DigestText returns the hex sha256 of text. Transcript commits and chunk
// rows use the same digest function so change detection agrees everywhere.
func DigestText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
