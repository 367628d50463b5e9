// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/tomtom215/scriptorium/internal/store"
)

type mockMessenger struct {
	mu    sync.Mutex
	posts []string
	fail  bool
}

func (m *mockMessenger) Post(_ context.Context, fallback string, _ ...goslack.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("slack is down")
	}
	m.posts = append(m.posts, fallback)
	return nil
}

func (m *mockMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

func (m *mockMessenger) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func newTestSink(t *testing.T) (*Sink, *mockMessenger) {
	t.Helper()

	cfg := store.DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	cfg.GCInterval = 0

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open(): %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	m := &mockMessenger{}
	return New(s, Config{Messenger: m}), m
}

func TestEmitThrottlesWithinRollingHour(t *testing.T) {
	sink, messenger := newTestSink(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return base }

	out, err := sink.Emit(ctx, "budget_warning", "warning", map[string]any{"spent_usd": 4.1})
	if err != nil || out != OutcomeSent {
		t.Fatalf("first Emit() = (%s, %v), want (sent, nil)", out, err)
	}

	// 30 minutes later: throttled, no delivery.
	sink.now = func() time.Time { return base.Add(30 * time.Minute) }
	out, err = sink.Emit(ctx, "budget_warning", "warning", nil)
	if err != nil || out != OutcomeThrottled {
		t.Fatalf("second Emit() = (%s, %v), want (throttled, nil)", out, err)
	}
	if messenger.count() != 1 {
		t.Errorf("messenger posts = %d, want 1 (throttled call must not deliver)", messenger.count())
	}

	// 59m59s: still throttled.
	sink.now = func() time.Time { return base.Add(time.Hour - time.Second) }
	if out, _ := sink.Emit(ctx, "budget_warning", "warning", nil); out != OutcomeThrottled {
		t.Errorf("Emit() at 59m59s = %s, want throttled", out)
	}

	// Exactly one hour: window has rolled, send again.
	sink.now = func() time.Time { return base.Add(time.Hour) }
	out, err = sink.Emit(ctx, "budget_warning", "warning", nil)
	if err != nil || out != OutcomeSent {
		t.Fatalf("Emit() at window edge = (%s, %v), want (sent, nil)", out, err)
	}
	if messenger.count() != 2 {
		t.Errorf("messenger posts = %d, want 2", messenger.count())
	}
}

func TestEmitThrottlesPerAlertTypeIndependently(t *testing.T) {
	sink, messenger := newTestSink(t)
	ctx := context.Background()

	if out, _ := sink.Emit(ctx, "budget_warning", "warning", nil); out != OutcomeSent {
		t.Fatalf("budget_warning = %s, want sent", out)
	}
	if out, _ := sink.Emit(ctx, "dlq_spike", "critical", nil); out != OutcomeSent {
		t.Fatalf("dlq_spike = %s, want sent (types are independent)", out)
	}
	if messenger.count() != 2 {
		t.Errorf("messenger posts = %d, want 2", messenger.count())
	}
}

func TestEmitReleasesSlotOnDeliveryFailure(t *testing.T) {
	sink, messenger := newTestSink(t)
	ctx := context.Background()

	messenger.setFail(true)
	out, err := sink.Emit(ctx, "run_failed", "critical", nil)
	if out != OutcomeFailed || err == nil {
		t.Fatalf("Emit() with broken messenger = (%s, %v), want (failed, error)", out, err)
	}

	// The failed attempt must not consume the hourly slot.
	messenger.setFail(false)
	out, err = sink.Emit(ctx, "run_failed", "critical", nil)
	if err != nil || out != OutcomeSent {
		t.Fatalf("Emit() after recovery = (%s, %v), want (sent, nil)", out, err)
	}
}

func TestEmitLogOnlyWithoutMessenger(t *testing.T) {
	cfg := store.DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	cfg.GCInterval = 0

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open(): %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sink := New(s, Config{})
	out, err := sink.Emit(context.Background(), "run_summary", "info", map[string]any{"planned": 4})
	if err != nil || out != OutcomeSent {
		t.Errorf("Emit() log-only = (%s, %v), want (sent, nil)", out, err)
	}
}

func TestEmitRejectsEmptyAlertType(t *testing.T) {
	sink, _ := newTestSink(t)

	out, err := sink.Emit(context.Background(), "", "info", nil)
	if out != OutcomeFailed || !errors.Is(err, ErrEmptyAlertType) {
		t.Errorf("Emit(empty type) = (%s, %v), want (failed, ErrEmptyAlertType)", out, err)
	}
}

func TestLastSentTracksThrottleState(t *testing.T) {
	sink, _ := newTestSink(t)
	ctx := context.Background()

	rec, err := sink.LastSent(ctx, "budget_warning")
	if err != nil {
		t.Fatalf("LastSent(): %v", err)
	}
	if !rec.LastSent.IsZero() || rec.Count != 0 {
		t.Errorf("fresh record = %+v, want zero", rec)
	}

	if _, err := sink.Emit(ctx, "budget_warning", "warning", nil); err != nil {
		t.Fatalf("Emit(): %v", err)
	}

	rec, err = sink.LastSent(ctx, "budget_warning")
	if err != nil {
		t.Fatalf("LastSent(): %v", err)
	}
	if rec.Count != 1 || rec.LastSent.IsZero() {
		t.Errorf("record after send = %+v", rec)
	}
}

func TestFormatAlertDeterministic(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"zeta": 1, "alpha": "x", "mid": 3.5}
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	fb1, blocks1 := formatAlert("budget_warning", "warning", payload, at)
	fb2, blocks2 := formatAlert("budget_warning", "warning", payload, at)

	if fb1 != fb2 {
		t.Errorf("fallback differs across calls: %q vs %q", fb1, fb2)
	}
	if fb1 != "[warning] budget_warning" {
		t.Errorf("fallback = %q", fb1)
	}
	if len(blocks1) != len(blocks2) || len(blocks1) != 4 {
		t.Errorf("block counts = %d, %d, want 4", len(blocks1), len(blocks2))
	}

	s1, ok1 := blocks1[2].(*goslack.SectionBlock)
	s2, ok2 := blocks2[2].(*goslack.SectionBlock)
	if !ok1 || !ok2 {
		t.Fatalf("third block is not a section: %T", blocks1[2])
	}
	if s1.Text.Text != s2.Text.Text {
		t.Errorf("section text differs: %q vs %q (keys must be sorted)", s1.Text.Text, s2.Text.Text)
	}
}
