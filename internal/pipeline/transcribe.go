// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/scriptorium/internal/blob"
	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/chunk"
	"github.com/tomtom215/scriptorium/internal/ledger"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/providers"
)

// TranscribeStage turns a queued video into a committed transcript. The
// budget gate runs on the estimated cost before the provider is called.
type TranscribeStage struct {
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	blobs   *blob.Store
	speech  providers.Transcriber
}

// NewTranscribeStage builds the transcription stage.
func NewTranscribeStage(cat *catalog.Catalog, led *ledger.Ledger, blobs *blob.Store, speech providers.Transcriber) *TranscribeStage {
	return &TranscribeStage{catalog: cat, ledger: led, blobs: blobs, speech: speech}
}

func (s *TranscribeStage) JobType() string          { return JobTranscribe }
func (s *TranscribeStage) From() models.VideoStatus { return models.StatusTranscriptionQueued }
func (s *TranscribeStage) To() models.VideoStatus   { return models.StatusTranscribed }

// transcriptDocument is the JSON artifact written next to the raw text.
type transcriptDocument struct {
	VideoID          string  `json:"video_id"`
	Language         string  `json:"language"`
	AudioDurationSec int     `json:"audio_duration_sec"`
	CostUSD          float64 `json:"cost_usd"`
	ContentDigest    string  `json:"content_digest"`
	Text             string  `json:"text"`
}

// Run transcribes the video and commits the result. A matching committed
// digest short-circuits: replays never re-bill the provider.
func (s *TranscribeStage) Run(ctx context.Context, video models.Video) (*Result, error) {
	if existing, err := s.catalog.GetTranscript(ctx, video.VideoID); err == nil {
		logging.Ctx(ctx).Info().Str("digest", existing.ContentDigest).Msg("transcript already committed, skipping provider call")
		return &Result{Status: ResultSuccess, Outputs: existing.ArtifactRefs}, nil
	}

	estimate := s.speech.EstimateCostUSD(video.DurationSec)
	dec, err := s.ledger.Check(ctx, ledger.ServiceSpeechToText, estimate)
	if err != nil {
		return nil, fmt.Errorf("transcription budget check: %w", err)
	}
	if !dec.Allowed {
		return nil, models.NewBudgetExceeded(
			fmt.Errorf("transcription budget exhausted for %s (est $%.2f, $%.2f left), resets in %.1fh",
				video.VideoID, estimate, dec.Remaining, dec.ResetInHours()))
	}

	res, err := s.speech.Transcribe(ctx, &video)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Record(ctx, ledger.ServiceSpeechToText, res.CostUSD, res.CostUSD); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("transcription cost record failed")
	}

	digest := chunk.DigestText(res.Text)
	txtRef, err := s.blobs.Put(video.VideoID, video.PublishedAt, models.ArtifactTranscriptText, []byte(res.Text))
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeStorageUnavailable, err)
	}

	doc, err := json.Marshal(transcriptDocument{
		VideoID:          video.VideoID,
		Language:         res.Language,
		AudioDurationSec: res.AudioDurationSec,
		CostUSD:          res.CostUSD,
		ContentDigest:    digest,
		Text:             res.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal transcript document: %w", err)
	}
	jsonRef, err := s.blobs.Put(video.VideoID, video.PublishedAt, models.ArtifactTranscriptJSON, doc)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeStorageUnavailable, err)
	}

	refs := map[string]string{
		string(models.ArtifactTranscriptText): txtRef,
		string(models.ArtifactTranscriptJSON): jsonRef,
	}
	transcript := models.Transcript{
		VideoID:       video.VideoID,
		ArtifactRefs:  refs,
		ContentDigest: digest,
		CostUSD:       res.CostUSD,
		Language:      res.Language,
		DurationSec:   res.AudioDurationSec,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.catalog.CommitTranscript(ctx, transcript); err != nil {
		return nil, fmt.Errorf("commit transcript %s: %w", video.VideoID, err)
	}

	return &Result{Status: ResultSuccess, Outputs: refs, CostUSD: res.CostUSD}, nil
}
