// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"reflect"
	"testing"

	"github.com/tomtom215/scriptorium/internal/blob"
	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/providers"
)

type fakeSummarizer struct {
	res   *providers.SummaryResult
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ *models.Video, _ string) (*providers.SummaryResult, error) {
	f.calls++
	return f.res, f.err
}

func newSummarizeEnv(t *testing.T, llm providers.Summarizer) (*SummarizeStage, *catalog.Catalog, *blob.Store) {
	t.Helper()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	blobs, err := blob.Open(t.TempDir())
	if err != nil {
		t.Fatalf("blob.Open(): %v", err)
	}
	return NewSummarizeStage(cat, blobs, llm, "prompt-v1"), cat, blobs
}

func TestSummarizeStageDeduplicatesCaseInsensitively(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	llm := &fakeSummarizer{res: &providers.SummaryResult{
		Bullets: []string{
			"Pricing drives churn more than features.",
			"pricing drives churn more than features.",
			"Retention compounds over time.",
		},
		Concepts: []string{"SaaS pricing", "saas pricing", "retention"},
		Usage:    models.TokenUsage{Input: 1200, Output: 180},
	}}
	stage, cat, blobs := newSummarizeEnv(t, llm)

	video := seedVideo(t, cat, "yt_sum1", models.StatusTranscribed)
	seedTranscript(t, cat, blobs, video, "we talked about pricing and retention at length")

	res, err := stage.Run(ctx, video)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if res.Status != ResultSuccess {
		t.Fatalf("status = %s, want %s", res.Status, ResultSuccess)
	}

	summary, err := cat.GetSummary(ctx, "yt_sum1")
	if err != nil {
		t.Fatalf("GetSummary(): %v", err)
	}
	wantBullets := []string{
		"Pricing drives churn more than features.",
		"Retention compounds over time.",
	}
	if !reflect.DeepEqual(summary.Bullets, wantBullets) {
		t.Errorf("bullets = %v, want first occurrences only", summary.Bullets)
	}
	wantConcepts := []string{"SaaS pricing", "retention"}
	if !reflect.DeepEqual(summary.Concepts, wantConcepts) {
		t.Errorf("concepts = %v, want %v", summary.Concepts, wantConcepts)
	}
}

func TestSummarizeStageSkipsCommittedSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	llm := &fakeSummarizer{res: &providers.SummaryResult{
		Bullets:  []string{"One takeaway."},
		Concepts: []string{"topic"},
	}}
	stage, cat, blobs := newSummarizeEnv(t, llm)

	video := seedVideo(t, cat, "yt_sum2", models.StatusTranscribed)
	seedTranscript(t, cat, blobs, video, "short transcript")

	for i := 0; i < 2; i++ {
		if _, err := stage.Run(ctx, video); err != nil {
			t.Fatalf("Run() %d: %v", i, err)
		}
	}
	if llm.calls != 1 {
		t.Errorf("model calls = %d, replays must not re-bill", llm.calls)
	}
}

func TestDedupeFold(t *testing.T) {
	t.Parallel()

	got := dedupeFold([]string{"Alpha", "  alpha ", "BETA", "beta", "", "gamma"})
	want := []string{"Alpha", "BETA", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupeFold() = %v, want %v", got, want)
	}
}
