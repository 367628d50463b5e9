// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/scriptorium/internal/blob"
	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/ledger"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/providers"
)

type fakeTranscriber struct {
	res   *providers.TranscriptResult
	err   error
	rate  float64
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ *models.Video) (*providers.TranscriptResult, error) {
	f.calls++
	return f.res, f.err
}

func (f *fakeTranscriber) EstimateCostUSD(durationSec int) float64 {
	return float64(durationSec) / 60 * f.rate
}

func newTranscribeEnv(t *testing.T, speech providers.Transcriber, dailyUSD float64) (*TranscribeStage, *catalog.Catalog) {
	t.Helper()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	led, err := ledger.New(s, ledger.Config{
		Timezone:              "UTC",
		TranscriptionDailyUSD: dailyUSD,
		YouTubeDailyUnits:     10000,
	})
	if err != nil {
		t.Fatalf("ledger.New(): %v", err)
	}
	blobs, err := blob.Open(t.TempDir())
	if err != nil {
		t.Fatalf("blob.Open(): %v", err)
	}
	return NewTranscribeStage(cat, led, blobs, speech), cat
}

func TestTranscribeStageCommitsTranscript(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	speech := &fakeTranscriber{rate: 0.01, res: &providers.TranscriptResult{
		Text:             "welcome back, today we cover pricing",
		Language:         "en",
		AudioDurationSec: 600,
		CostUSD:          0.10,
	}}
	stage, cat := newTranscribeEnv(t, speech, 5)

	video := seedVideo(t, cat, "yt_tr1", models.StatusTranscriptionQueued)
	res, err := stage.Run(ctx, video)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if res.Status != ResultSuccess {
		t.Fatalf("status = %s, want %s", res.Status, ResultSuccess)
	}
	if res.CostUSD != 0.10 {
		t.Errorf("result cost = %.2f, want 0.10", res.CostUSD)
	}

	transcript, err := cat.GetTranscript(ctx, "yt_tr1")
	if err != nil {
		t.Fatalf("GetTranscript(): %v", err)
	}
	if transcript.ContentDigest == "" {
		t.Error("committed transcript has no content digest")
	}
	if transcript.DurationSec != 600 {
		t.Errorf("transcript duration = %d, want 600", transcript.DurationSec)
	}
	if transcript.ArtifactRefs[string(models.ArtifactTranscriptText)] == "" {
		t.Error("committed transcript has no text artifact ref")
	}
}

func TestTranscribeStageSkipsCommittedTranscript(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	speech := &fakeTranscriber{rate: 0.01, res: &providers.TranscriptResult{
		Text: "hello", Language: "en", AudioDurationSec: 600, CostUSD: 0.10,
	}}
	stage, cat := newTranscribeEnv(t, speech, 5)

	video := seedVideo(t, cat, "yt_tr2", models.StatusTranscriptionQueued)
	for i := 0; i < 2; i++ {
		if _, err := stage.Run(ctx, video); err != nil {
			t.Fatalf("Run() %d: %v", i, err)
		}
	}
	if speech.calls != 1 {
		t.Errorf("provider calls = %d, replays must not re-bill", speech.calls)
	}
}

func TestTranscribeStageBudgetGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// 600s at $1/min estimates to $10, well past the $1 daily cap.
	speech := &fakeTranscriber{rate: 1, res: &providers.TranscriptResult{Text: "x"}}
	stage, cat := newTranscribeEnv(t, speech, 1)

	video := seedVideo(t, cat, "yt_tr3", models.StatusTranscriptionQueued)
	_, err := stage.Run(ctx, video)
	if err == nil {
		t.Fatal("Run() succeeded past an exhausted budget")
	}
	var cerr *models.ClassifiedError
	if !errors.As(err, &cerr) || cerr.Kind != models.ErrKindBudgetExceeded {
		t.Fatalf("Run() error = %v, want budget_exceeded classification", err)
	}
	if speech.calls != 0 {
		t.Errorf("provider calls = %d, gate must run before the provider", speech.calls)
	}
}
