// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package observer

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/scriptorium/internal/models"
)

type capturedAlert struct {
	alertType, severity string
	payload             map[string]any
}

type memoryAlerter struct {
	mu     sync.Mutex
	alerts []capturedAlert
}

func (m *memoryAlerter) Notify(_ context.Context, alertType, severity string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, capturedAlert{alertType, severity, payload})
	return nil
}

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got, want)
	}
}

func TestHealthScore(t *testing.T) {
	t.Parallel()

	t.Run("perfect run", func(t *testing.T) {
		t.Parallel()
		approx(t, HealthScore(models.RunSummary{Planned: 10, Succeeded: 10}), 100)
	})

	t.Run("empty run is healthy", func(t *testing.T) {
		t.Parallel()
		approx(t, HealthScore(models.RunSummary{}), 100)
	})

	t.Run("half failed", func(t *testing.T) {
		t.Parallel()
		s := models.RunSummary{Planned: 10, Succeeded: 5, Failed: 5, DLQCount: 5}
		// 60*0.5 + 20*0.5 + 20*1.0
		approx(t, HealthScore(s), 60)
	})

	t.Run("worst quota headroom counts", func(t *testing.T) {
		t.Parallel()
		s := models.RunSummary{
			Planned:   4,
			Succeeded: 4,
			QuotaState: []models.QuotaSnapshot{
				{Service: "youtube", Headroom: 0.9},
				{Service: "speech_to_text", Headroom: 0.1},
			},
		}
		// 60 + 20 + 20*0.1
		approx(t, HealthScore(s), 82)
	})

	t.Run("dlq rate clamps at one", func(t *testing.T) {
		t.Parallel()
		s := models.RunSummary{Planned: 2, Succeeded: 0, DLQCount: 9}
		// 0 + 0 + 20
		approx(t, HealthScore(s), 20)
	})
}

func TestStartedWithoutBus(t *testing.T) {
	t.Parallel()

	obs := New(&memoryAlerter{}, nil)
	obs.Started(context.Background(), models.RunPlan{
		RunID:     "run_0",
		Channels:  []string{"UCa"},
		CreatedAt: time.Now().UTC(),
	})
}

func TestCompleteSetsScoreAndSkipsAlertWhenHealthy(t *testing.T) {
	t.Parallel()

	alerts := &memoryAlerter{}
	obs := New(alerts, nil)

	now := time.Now().UTC()
	summary := &models.RunSummary{
		RunID:       "run_1",
		Planned:     5,
		Succeeded:   5,
		StartedAt:   now.Add(-time.Minute),
		CompletedAt: now,
	}
	obs.Complete(context.Background(), summary)

	approx(t, summary.HealthScore, 100)
	if len(alerts.alerts) != 0 {
		t.Errorf("alerts = %+v, healthy run must not alert", alerts.alerts)
	}
}

func TestCompleteAlertsOnDegradedRun(t *testing.T) {
	t.Parallel()

	alerts := &memoryAlerter{}
	obs := New(alerts, nil)

	summary := &models.RunSummary{
		RunID:     "run_2",
		Planned:   10,
		Succeeded: 4,
		Failed:    6,
		DLQCount:  6,
	}
	obs.Complete(context.Background(), summary)

	if len(alerts.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts.alerts))
	}
	a := alerts.alerts[0]
	if a.alertType != "run_degraded" {
		t.Errorf("alert type = %q", a.alertType)
	}
	if a.payload["run_id"] != "run_2" {
		t.Errorf("payload = %+v", a.payload)
	}
}

func TestCompleteCriticalWhenNothingSucceeded(t *testing.T) {
	t.Parallel()

	alerts := &memoryAlerter{}
	obs := New(alerts, nil)

	summary := &models.RunSummary{RunID: "run_3", Planned: 3, Failed: 3, DLQCount: 3}
	obs.Complete(context.Background(), summary)

	if len(alerts.alerts) != 1 || alerts.alerts[0].severity != "critical" {
		t.Errorf("alerts = %+v, want one critical", alerts.alerts)
	}
}
