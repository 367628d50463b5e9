// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/models"
)

// RunFunc executes one ingestion pass.
type RunFunc func(ctx context.Context) (models.RunSummary, error)

// Scheduler fires the daily ingestion run at the configured local hour.
// A run is triggered at most once per local day; the day boundary follows
// the scheduler timezone.
type Scheduler struct {
	cfg config.SchedulerConfig
	loc *time.Location
	run RunFunc

	mu         sync.Mutex
	lastRunDay string

	// now is swapped by tests to pin the clock.
	now func() time.Time
}

// NewScheduler builds the daily scheduler. The timezone must resolve.
func NewScheduler(cfg config.SchedulerConfig, run RunFunc) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	return &Scheduler{cfg: cfg, loc: loc, run: run, now: time.Now}, nil
}

// NextRun returns the first trigger time strictly after t.
func (s *Scheduler) NextRun(t time.Time) time.Time {
	local := t.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.DailyRunHour, 0, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// due reports whether the daily trigger has passed and no run happened on
// the current local day yet.
func (s *Scheduler) due(now time.Time) bool {
	local := now.In(s.loc)
	if local.Hour() < s.cfg.DailyRunHour {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunDay != local.Format("2006-01-02")
}

func (s *Scheduler) markRun(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRunDay = now.In(s.loc).Format("2006-01-02")
}

// Serve runs the trigger loop until the context is cancelled. It satisfies
// the supervisor's service contract.
func (s *Scheduler) Serve(ctx context.Context) error {
	logging.Info().
		Str("timezone", s.cfg.Timezone).
		Int("daily_run_hour", s.cfg.DailyRunHour).
		Time("next_run", s.NextRun(s.now())).
		Msg("daily scheduler started")

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := s.now()
			if !s.due(now) {
				continue
			}
			s.markRun(now)
			if _, err := s.run(ctx); err != nil && ctx.Err() == nil {
				logging.Error().Err(err).Msg("scheduled run failed")
			}
		}
	}
}

// TriggerNow runs an ingestion pass immediately and counts it as the day's
// scheduled run.
func (s *Scheduler) TriggerNow(ctx context.Context) (models.RunSummary, error) {
	s.markRun(s.now())
	return s.run(ctx)
}
