// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/dlq"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	cfg := store.DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	cfg.GCInterval = 0

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open(): %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close(): %v", err)
		}
	})
	return s
}

func testDispatcher(t *testing.T, cat *catalog.Catalog, queue *dlq.Queue) *Dispatcher {
	t.Helper()
	d := NewDispatcher(cat, queue, nil,
		config.RetriesConfig{MaxAttempts: 2},
		config.ConcurrencyConfig{Scrape: 1, Transcribe: 3, Summarize: 3, Index: 5},
	)
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

func seedVideo(t *testing.T, cat *catalog.Catalog, videoID string, status models.VideoStatus) models.Video {
	t.Helper()
	ctx := context.Background()

	v, err := cat.UpsertVideo(ctx, models.Video{
		VideoID:     videoID,
		ChannelID:   "UC_test",
		Title:       "Test Video",
		PublishedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		DurationSec: 600,
		Source:      models.SourceChannelScrape,
	})
	if err != nil {
		t.Fatalf("UpsertVideo(): %v", err)
	}

	order := []models.VideoStatus{
		models.StatusDiscovered,
		models.StatusTranscriptionQueued,
		models.StatusTranscribed,
		models.StatusSummarized,
		models.StatusIndexed,
	}
	for i := 0; i < len(order)-1 && v.Status != status; i++ {
		v, err = cat.Transition(ctx, videoID, order[i], order[i+1])
		if err != nil {
			t.Fatalf("Transition(%s -> %s): %v", order[i], order[i+1], err)
		}
	}
	if v.Status != status {
		t.Fatalf("could not seed status %s, got %s", status, v.Status)
	}
	return v
}

// scriptedStage fails a fixed number of times before succeeding, or always
// fails with a fixed error.
type scriptedStage struct {
	jobType  string
	from, to models.VideoStatus
	failures int
	err      error
	calls    atomic.Int32
}

func (s *scriptedStage) JobType() string          { return s.jobType }
func (s *scriptedStage) From() models.VideoStatus { return s.from }
func (s *scriptedStage) To() models.VideoStatus   { return s.to }

func (s *scriptedStage) Run(_ context.Context, _ models.Video) (*Result, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if int(n) <= s.failures {
		return nil, models.NewTransient(models.ErrTypeTimeout, fmt.Errorf("attempt %d", n))
	}
	return &Result{Status: ResultSuccess, CostUSD: 0.5}, nil
}

func transcribeScript(failures int, err error) *scriptedStage {
	return &scriptedStage{
		jobType:  JobTranscribe,
		from:     models.StatusTranscriptionQueued,
		to:       models.StatusTranscribed,
		failures: failures,
		err:      err,
	}
}

func TestDispatcherAdvancesOnSuccess(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	queue := dlq.New(s)
	d := testDispatcher(t, cat, queue)
	ctx := context.Background()

	seedVideo(t, cat, "vid_ok", models.StatusTranscriptionQueued)

	stage := transcribeScript(0, nil)
	result, err := d.Process(ctx, stage, "vid_ok")
	if err != nil {
		t.Fatalf("Process(): %v", err)
	}
	if result.Status != ResultSuccess {
		t.Errorf("status = %s", result.Status)
	}

	v, err := cat.Get(ctx, "vid_ok")
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if v.Status != models.StatusTranscribed {
		t.Errorf("video status = %s, want transcribed", v.Status)
	}
}

func TestDispatcherRetriesTransient(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	queue := dlq.New(s)
	d := testDispatcher(t, cat, queue)
	ctx := context.Background()

	seedVideo(t, cat, "vid_retry", models.StatusTranscriptionQueued)

	stage := transcribeScript(2, nil)
	if _, err := d.Process(ctx, stage, "vid_retry"); err != nil {
		t.Fatalf("Process(): %v", err)
	}
	if got := stage.calls.Load(); got != 3 {
		t.Errorf("stage ran %d times, want 3", got)
	}

	v, _ := cat.Get(ctx, "vid_retry")
	if v.Status != models.StatusTranscribed {
		t.Errorf("video status = %s, want transcribed", v.Status)
	}
	if v.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", v.RetryCount)
	}
}

func TestDispatcherDeadLettersOnExhaustion(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	queue := dlq.New(s)
	d := testDispatcher(t, cat, queue)
	ctx := context.Background()

	seedVideo(t, cat, "vid_exhaust", models.StatusTranscriptionQueued)

	stage := transcribeScript(10, nil)
	_, err := d.Process(ctx, stage, "vid_exhaust")
	if err == nil {
		t.Fatal("expected dead letter error")
	}
	if got := stage.calls.Load(); got != 3 {
		t.Errorf("stage ran %d times, want maxAttempts+1 = 3", got)
	}

	v, _ := cat.Get(ctx, "vid_exhaust")
	if v.Status != models.StatusFailed {
		t.Errorf("video status = %s, want failed", v.Status)
	}

	entries, err := queue.Query(ctx, dlq.QueryFilter{VideoID: "vid_exhaust"})
	if err != nil {
		t.Fatalf("Query(): %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(entries))
	}
	// transcribe is a paid stage, so retry exhaustion grades high.
	if entries[0].Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", entries[0].Severity)
	}
}

func TestDispatcherDeadLettersTerminalImmediately(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	queue := dlq.New(s)
	d := testDispatcher(t, cat, queue)
	ctx := context.Background()

	seedVideo(t, cat, "vid_term", models.StatusTranscriptionQueued)

	stage := transcribeScript(0, models.NewTerminal(models.ErrTypeUnsupportedMedia, errors.New("no audio track")))
	if _, err := d.Process(ctx, stage, "vid_term"); err == nil {
		t.Fatal("expected error")
	}
	if got := stage.calls.Load(); got != 1 {
		t.Errorf("stage ran %d times, want 1", got)
	}

	entries, _ := queue.Query(ctx, dlq.QueryFilter{VideoID: "vid_term"})
	if len(entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(entries))
	}
	if entries[0].Severity != models.SeverityMedium {
		t.Errorf("severity = %s, want medium for unsupported media", entries[0].Severity)
	}
}

func TestDispatcherDefersBudgetExhaustion(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	queue := dlq.New(s)
	d := testDispatcher(t, cat, queue)
	ctx := context.Background()

	seedVideo(t, cat, "vid_budget", models.StatusTranscriptionQueued)

	stage := transcribeScript(0, models.NewBudgetExceeded(errors.New("cap hit")))
	_, err := d.Process(ctx, stage, "vid_budget")
	if !errors.Is(err, ErrDeferred) {
		t.Fatalf("err = %v, want ErrDeferred", err)
	}

	// Deferred jobs never dead-letter and keep their status for the next
	// run.
	entries, _ := queue.Query(ctx, dlq.QueryFilter{VideoID: "vid_budget"})
	if len(entries) != 0 {
		t.Errorf("dlq entries = %d, want 0", len(entries))
	}
	v, _ := cat.Get(ctx, "vid_budget")
	if v.Status != models.StatusTranscriptionQueued {
		t.Errorf("video status = %s, want transcription_queued", v.Status)
	}
}

func TestDispatcherSkipsWrongEntryStatus(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	queue := dlq.New(s)
	d := testDispatcher(t, cat, queue)
	ctx := context.Background()

	seedVideo(t, cat, "vid_done", models.StatusTranscribed)

	stage := transcribeScript(0, nil)
	result, err := d.Process(ctx, stage, "vid_done")
	if err != nil {
		t.Fatalf("Process(): %v", err)
	}
	if stage.calls.Load() != 0 {
		t.Error("stage ran for a video past its entry status")
	}
	if result.Outputs["skipped"] != "status" {
		t.Errorf("outputs = %v", result.Outputs)
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	t.Parallel()

	for attempt := 0; attempt < 12; attempt++ {
		d := backoffDelay(attempt)
		baseF, capF := float64(backoffBase), float64(backoffCap)
		min := time.Duration(baseF * 0.89)
		max := time.Duration(capF * 1.11)
		if d < min || d > max {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, d, min, max)
		}
	}
	// First attempt centers on the base, last on the cap.
	if d := backoffDelay(0); d > 2*backoffBase {
		t.Errorf("attempt 0 delay %v too large", d)
	}
	if d := backoffDelay(11); d < backoffCap/2 {
		t.Errorf("attempt 11 delay %v too small", d)
	}
}

func TestSchedulerNextRun(t *testing.T) {
	t.Parallel()

	cfg := config.SchedulerConfig{
		Timezone:      "Europe/Amsterdam",
		DailyRunHour:  3,
		CheckInterval: time.Minute,
	}
	sched, err := NewScheduler(cfg, func(ctx context.Context) (models.RunSummary, error) {
		return models.RunSummary{}, nil
	})
	if err != nil {
		t.Fatalf("NewScheduler(): %v", err)
	}

	loc, _ := time.LoadLocation("Europe/Amsterdam")

	before := time.Date(2026, 3, 10, 1, 30, 0, 0, loc)
	next := sched.NextRun(before)
	if next.Hour() != 3 || next.Day() != 10 {
		t.Errorf("next run = %v, want same day 03:00", next)
	}

	after := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	next = sched.NextRun(after)
	if next.Hour() != 3 || next.Day() != 11 {
		t.Errorf("next run = %v, want next day 03:00", next)
	}
}

func TestSchedulerRunsOncePerDay(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	cfg := config.SchedulerConfig{
		Timezone:      "UTC",
		DailyRunHour:  3,
		CheckInterval: time.Minute,
	}
	sched, err := NewScheduler(cfg, func(ctx context.Context) (models.RunSummary, error) {
		runs.Add(1)
		return models.RunSummary{}, nil
	})
	if err != nil {
		t.Fatalf("NewScheduler(): %v", err)
	}

	day := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	if !sched.due(day) {
		t.Error("expected due after trigger hour")
	}
	sched.markRun(day)
	if sched.due(day.Add(time.Hour)) {
		t.Error("second trigger on the same day")
	}
	if !sched.due(day.AddDate(0, 0, 1)) {
		t.Error("expected due again the next day")
	}
	if sched.due(time.Date(2026, 3, 12, 2, 0, 0, 0, time.UTC)) {
		t.Error("due before trigger hour")
	}

	sched.now = func() time.Time { return day }
	if _, err := sched.TriggerNow(context.Background()); err != nil {
		t.Fatalf("TriggerNow(): %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if sched.due(day.Add(time.Hour)) {
		t.Error("manual trigger should count as the day's run")
	}
}

func TestReplayerResetsAndRedispatches(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	cat := catalog.New(s, catalog.Config{})
	queue := dlq.New(s)
	d := testDispatcher(t, cat, queue)
	ctx := context.Background()

	seedVideo(t, cat, "vid_replay", models.StatusTranscriptionQueued)

	failing := transcribeScript(0, models.NewTerminal(models.ErrTypeUnsupportedMedia, errors.New("bad codec")))
	if _, err := d.Process(ctx, failing, "vid_replay"); err == nil {
		t.Fatal("expected dead letter")
	}
	entries, _ := queue.Query(ctx, dlq.QueryFilter{VideoID: "vid_replay"})
	if len(entries) != 1 {
		t.Fatalf("dlq entries = %d", len(entries))
	}

	healthy := transcribeScript(0, nil)
	replayer := NewReplayer(cat, queue, d, []Stage{healthy})
	result, err := replayer.Replay(ctx, entries[0].JobID)
	if err != nil {
		t.Fatalf("Replay(): %v", err)
	}
	if result.Status != ResultSuccess {
		t.Errorf("replay status = %s", result.Status)
	}

	v, _ := cat.Get(ctx, "vid_replay")
	if v.Status != models.StatusTranscribed {
		t.Errorf("video status = %s, want transcribed", v.Status)
	}

	// The consumed entry cannot replay twice.
	if _, err := replayer.Replay(ctx, entries[0].JobID); !errors.Is(err, dlq.ErrAlreadyReplayed) {
		t.Errorf("second replay err = %v, want ErrAlreadyReplayed", err)
	}
}
