// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/scriptorium/internal/blob"
	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/providers"
)

// SummarizeStage produces the LLM summary for a transcribed video.
type SummarizeStage struct {
	catalog  *catalog.Catalog
	blobs    *blob.Store
	llm      providers.Summarizer
	promptID string
}

// NewSummarizeStage builds the summarization stage.
func NewSummarizeStage(cat *catalog.Catalog, blobs *blob.Store, llm providers.Summarizer, promptID string) *SummarizeStage {
	return &SummarizeStage{catalog: cat, blobs: blobs, llm: llm, promptID: promptID}
}

func (s *SummarizeStage) JobType() string          { return JobSummarize }
func (s *SummarizeStage) From() models.VideoStatus { return models.StatusTranscribed }
func (s *SummarizeStage) To() models.VideoStatus   { return models.StatusSummarized }

// Run summarizes the committed transcript. An already committed summary
// short-circuits so replays never re-bill the model.
func (s *SummarizeStage) Run(ctx context.Context, video models.Video) (*Result, error) {
	if existing, err := s.catalog.GetSummary(ctx, video.VideoID); err == nil {
		logging.Ctx(ctx).Info().Msg("summary already committed, skipping model call")
		return &Result{Status: ResultSuccess, Outputs: existing.ArtifactRefs}, nil
	}

	text, err := s.transcriptText(ctx, video.VideoID)
	if err != nil {
		return nil, err
	}

	res, err := s.llm.Summarize(ctx, &video, text)
	if err != nil {
		return nil, err
	}
	bullets := dedupeFold(res.Bullets)
	concepts := dedupeFold(res.Concepts)

	md := renderSummaryMarkdown(video, bullets, concepts)
	mdRef, err := s.blobs.Put(video.VideoID, video.PublishedAt, models.ArtifactSummaryMD, []byte(md))
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeStorageUnavailable, err)
	}

	doc, err := json.Marshal(map[string]any{
		"video_id":  video.VideoID,
		"bullets":   bullets,
		"concepts":  concepts,
		"prompt_id": s.promptID,
		"usage":     res.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal summary document: %w", err)
	}
	jsonRef, err := s.blobs.Put(video.VideoID, video.PublishedAt, models.ArtifactSummaryJSON, doc)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeStorageUnavailable, err)
	}

	refs := map[string]string{
		string(models.ArtifactSummaryMD):   mdRef,
		string(models.ArtifactSummaryJSON): jsonRef,
	}
	summary := models.Summary{
		VideoID:      video.VideoID,
		Bullets:      bullets,
		Concepts:     concepts,
		PromptID:     s.promptID,
		TokenUsage:   res.Usage,
		ArtifactRefs: refs,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.catalog.CommitSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("commit summary %s: %w", video.VideoID, err)
	}

	return &Result{Status: ResultSuccess, Outputs: refs}, nil
}

// transcriptText loads the raw transcript text behind the committed record.
func (s *SummarizeStage) transcriptText(ctx context.Context, videoID string) (string, error) {
	transcript, err := s.catalog.GetTranscript(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("load transcript %s: %w", videoID, err)
	}
	ref, ok := transcript.ArtifactRefs[string(models.ArtifactTranscriptText)]
	if !ok {
		return "", models.NewTerminal(models.ErrTypeInvalidInput,
			fmt.Errorf("transcript %s has no text artifact", videoID))
	}
	data, err := s.blobs.Get(ref)
	if err != nil {
		return "", models.NewTransient(models.ErrTypeStorageUnavailable, err)
	}
	return string(data), nil
}

// dedupeFold drops case-insensitive duplicates, keeping the first occurrence.
func dedupeFold(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func renderSummaryMarkdown(video models.Video, bullets, concepts []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", video.Title)
	fmt.Fprintf(&sb, "Video: %s | Channel: %s | Published: %s\n\n",
		video.VideoID, video.ChannelID, video.PublishedAt.UTC().Format("2006-01-02"))
	sb.WriteString("## Key Points\n\n")
	for _, b := range bullets {
		fmt.Fprintf(&sb, "- %s\n", b)
	}
	if len(concepts) > 0 {
		sb.WriteString("\n## Concepts\n\n")
		sb.WriteString(strings.Join(concepts, ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}
