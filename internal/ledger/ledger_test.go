// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/scriptorium/internal/store"
)

type alertCall struct {
	alertType string
	severity  string
}

type recordingAlerter struct {
	mu    sync.Mutex
	calls []alertCall
}

func (r *recordingAlerter) Notify(_ context.Context, alertType, severity string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, alertCall{alertType, severity})
	return nil
}

func (r *recordingAlerter) all() []alertCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]alertCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func newTestLedger(t *testing.T, cfg Config) (*Ledger, *recordingAlerter) {
	t.Helper()

	storeCfg := store.DefaultConfig(t.TempDir())
	storeCfg.SyncWrites = false
	storeCfg.GCInterval = 0

	s, err := store.Open(storeCfg)
	if err != nil {
		t.Fatalf("store.Open(): %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	alerts := &recordingAlerter{}
	cfg.Alerts = alerts
	l, err := New(s, cfg)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	return l, alerts
}

func TestNewRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	storeCfg := store.DefaultConfig(t.TempDir())
	storeCfg.SyncWrites = false
	storeCfg.GCInterval = 0
	s, err := store.Open(storeCfg)
	if err != nil {
		t.Fatalf("store.Open(): %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := New(s, Config{Timezone: "Mars/Olympus_Mons"}); err == nil {
		t.Error("New(bad timezone) = nil, want error")
	}
}

func TestCheckAllowsWithinBudget(t *testing.T) {
	l, _ := newTestLedger(t, Config{})
	ctx := context.Background()

	d, err := l.Check(ctx, ServiceSpeechToText, 1.00)
	if err != nil {
		t.Fatalf("Check(): %v", err)
	}
	if !d.Allowed {
		t.Error("fresh day should allow a 1 USD request against a 5 USD budget")
	}
	if d.Remaining != DefaultTranscriptionUSD {
		t.Errorf("Remaining = %v, want %v", d.Remaining, DefaultTranscriptionUSD)
	}
	if d.ResetIn <= 0 || d.ResetIn > 24*time.Hour {
		t.Errorf("ResetIn = %v, want within (0, 24h]", d.ResetIn)
	}
}

func TestCheckDeniesBeyondBudget(t *testing.T) {
	l, _ := newTestLedger(t, Config{TranscriptionDailyUSD: 2.00})
	ctx := context.Background()

	if err := l.Record(ctx, ServiceSpeechToText, 0, 1.50); err != nil {
		t.Fatalf("Record(): %v", err)
	}

	d, err := l.Check(ctx, ServiceSpeechToText, 1.00)
	if err != nil {
		t.Fatalf("Check(): %v", err)
	}
	if d.Allowed {
		t.Error("1.50 spent + 1.00 requested > 2.00 budget must deny")
	}
	if math.Abs(d.Remaining-0.50) > 1e-9 {
		t.Errorf("Remaining = %v, want 0.50", d.Remaining)
	}

	// A smaller request still fits.
	d, err = l.Check(ctx, ServiceSpeechToText, 0.50)
	if err != nil {
		t.Fatalf("Check(): %v", err)
	}
	if !d.Allowed {
		t.Error("exact-fit request must be allowed")
	}
}

func TestRecordAggregatesMatchSpend(t *testing.T) {
	l, _ := newTestLedger(t, Config{})
	ctx := context.Background()

	costs := []float64{0.054, 0.12, 0.026}
	var want float64
	for _, c := range costs {
		if err := l.Record(ctx, ServiceSpeechToText, 0, c); err != nil {
			t.Fatalf("Record(%v): %v", c, err)
		}
		want += c
	}

	agg, err := l.Aggregate(ctx, l.Today())
	if err != nil {
		t.Fatalf("Aggregate(): %v", err)
	}
	if math.Abs(agg.TranscriptionUSD-want) > 1e-9 {
		t.Errorf("TranscriptionUSD = %v, want %v", agg.TranscriptionUSD, want)
	}
	if agg.TranscriptCount != len(costs) {
		t.Errorf("TranscriptCount = %d, want %d", agg.TranscriptCount, len(costs))
	}
}

func TestAggregateMissingDayIsZero(t *testing.T) {
	l, _ := newTestLedger(t, Config{})

	agg, err := l.Aggregate(context.Background(), "1999-12-31")
	if err != nil {
		t.Fatalf("Aggregate(): %v", err)
	}
	if agg.TranscriptionUSD != 0 || agg.TranscriptCount != 0 {
		t.Errorf("zero-day aggregate = %+v", agg)
	}
}

func TestBudgetThresholdAlertsOncePerDay(t *testing.T) {
	l, alerts := newTestLedger(t, Config{TranscriptionDailyUSD: 1.00})
	ctx := context.Background()

	// 0.5 -> below both thresholds.
	if err := l.Record(ctx, ServiceSpeechToText, 0, 0.50); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if got := alerts.all(); len(got) != 0 {
		t.Fatalf("alerts after 50%% = %v, want none", got)
	}

	// 0.85 -> warning fires once.
	if err := l.Record(ctx, ServiceSpeechToText, 0, 0.35); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	got := alerts.all()
	if len(got) != 1 || got[0].alertType != "budget_warning" || got[0].severity != "warning" {
		t.Fatalf("alerts after 85%% = %v, want one budget_warning", got)
	}

	// 0.90 -> still above warning, below critical, nothing new.
	if err := l.Record(ctx, ServiceSpeechToText, 0, 0.05); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if got := alerts.all(); len(got) != 1 {
		t.Fatalf("alerts after second warning-range record = %v, want still one", got)
	}

	// 0.97 -> critical fires once, distinct from the warning.
	if err := l.Record(ctx, ServiceSpeechToText, 0, 0.07); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	got = alerts.all()
	if len(got) != 2 || got[1].alertType != "budget_critical" || got[1].severity != "critical" {
		t.Fatalf("alerts after 97%% = %v, want budget_warning then budget_critical", got)
	}

	// Further spend does not re-alert.
	if err := l.Record(ctx, ServiceSpeechToText, 0, 0.50); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if got := alerts.all(); len(got) != 2 {
		t.Errorf("alerts after overspend = %v, want exactly two", got)
	}
}

func TestBudgetJumpPastBothThresholds(t *testing.T) {
	l, alerts := newTestLedger(t, Config{TranscriptionDailyUSD: 1.00})

	if err := l.Record(context.Background(), ServiceSpeechToText, 0, 0.99); err != nil {
		t.Fatalf("Record(): %v", err)
	}

	got := alerts.all()
	if len(got) != 2 {
		t.Fatalf("alerts = %v, want warning and critical in one record", got)
	}
	if got[0].alertType != "budget_warning" || got[1].alertType != "budget_critical" {
		t.Errorf("alert order = %v, want warning before critical", got)
	}
}

func TestYouTubeQuotaUnits(t *testing.T) {
	l, _ := newTestLedger(t, Config{YouTubeDailyUnits: 100})
	ctx := context.Background()

	if err := l.Record(ctx, ServiceYouTube, 60, 0); err != nil {
		t.Fatalf("Record(): %v", err)
	}

	d, err := l.Check(ctx, ServiceYouTube, 50)
	if err != nil {
		t.Fatalf("Check(): %v", err)
	}
	if d.Allowed {
		t.Error("60 used + 50 requested > 100 units must deny")
	}
	if d.Remaining != 40 {
		t.Errorf("Remaining = %v, want 40", d.Remaining)
	}
}

func TestUnknownService(t *testing.T) {
	l, _ := newTestLedger(t, Config{})

	if _, err := l.Check(context.Background(), Service("fax"), 1); !errors.Is(err, ErrUnknownService) {
		t.Errorf("Check(fax) = %v, want ErrUnknownService", err)
	}
	if err := l.Record(context.Background(), Service("fax"), 1, 0); !errors.Is(err, ErrUnknownService) {
		t.Errorf("Record(fax) = %v, want ErrUnknownService", err)
	}
}

func TestResetInToLocalMidnight(t *testing.T) {
	l, _ := newTestLedger(t, Config{})

	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation(): %v", err)
	}

	// 22:30 local on a date with no DST transition.
	l.now = func() time.Time {
		return time.Date(2026, 3, 10, 22, 30, 0, 0, loc)
	}

	got := l.ResetIn()
	want := 90 * time.Minute
	if got != want {
		t.Errorf("ResetIn() = %v, want %v", got, want)
	}
	if hours := (Decision{ResetIn: got}).ResetInHours(); math.Abs(hours-1.5) > 1e-9 {
		t.Errorf("ResetInHours() = %v, want 1.5", hours)
	}
	if day := l.Today(); day != "2026-03-10" {
		t.Errorf("Today() = %s, want 2026-03-10", day)
	}
}

func TestSnapshotHeadroom(t *testing.T) {
	l, _ := newTestLedger(t, Config{TranscriptionDailyUSD: 4.00, YouTubeDailyUnits: 1000})
	ctx := context.Background()

	if err := l.Record(ctx, ServiceSpeechToText, 0, 2.00); err != nil {
		t.Fatalf("Record(): %v", err)
	}
	if err := l.Record(ctx, ServiceYouTube, 250, 0); err != nil {
		t.Fatalf("Record(): %v", err)
	}

	snaps, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot(): %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Snapshot() returned %d entries, want 2", len(snaps))
	}
	for _, s := range snaps {
		switch s.Service {
		case "youtube":
			if math.Abs(s.Headroom-0.75) > 1e-9 {
				t.Errorf("youtube headroom = %v, want 0.75", s.Headroom)
			}
		case "speech_to_text":
			if math.Abs(s.Headroom-0.5) > 1e-9 {
				t.Errorf("speech headroom = %v, want 0.5", s.Headroom)
			}
		default:
			t.Errorf("unexpected service %q", s.Service)
		}
	}
}

func TestHeadroomClamps(t *testing.T) {
	t.Parallel()

	if h := headroom(10, 5); h != 0 {
		t.Errorf("overspent headroom = %v, want 0", h)
	}
	if h := headroom(0, 0); h != 0 {
		t.Errorf("zero-limit headroom = %v, want 0", h)
	}
	if h := headroom(0, 5); h != 1 {
		t.Errorf("unused headroom = %v, want 1", h)
	}
}
