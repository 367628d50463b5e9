// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/ledger"
	"github.com/tomtom215/scriptorium/internal/models"
)

// Planner produces the run plan for a daily ingestion pass: which sources
// to pull, how far back, and how much budget headroom is left.
type Planner struct {
	ledger       *ledger.Ledger
	sched        config.SchedulerConfig
	channel      string
	sheetEnabled bool
}

// NewPlanner builds the run planner.
func NewPlanner(led *ledger.Ledger, sched config.SchedulerConfig, channel string, sheetEnabled bool) *Planner {
	return &Planner{ledger: led, sched: sched, channel: channel, sheetEnabled: sheetEnabled}
}

// Plan assembles the next run's plan from configuration and the current
// ledger state.
func (p *Planner) Plan(ctx context.Context) (models.RunPlan, error) {
	snaps, err := p.ledger.Snapshot(ctx)
	if err != nil {
		return models.RunPlan{}, fmt.Errorf("ledger snapshot: %w", err)
	}

	limits := models.ResourceLimits{}
	for _, snap := range snaps {
		remaining := snap.Limit - snap.Used
		if remaining < 0 {
			remaining = 0
		}
		switch ledger.Service(snap.Service) {
		case ledger.ServiceSpeechToText:
			limits.RemainingBudgetUSD = remaining
		case ledger.ServiceYouTube:
			limits.RemainingQuota = int64(remaining)
		}
	}

	now := time.Now().UTC()
	return models.RunPlan{
		RunID:           fmt.Sprintf("run_%s_%s", now.Format("20060102"), uuid.NewString()[:8]),
		Channels:        []string{p.channel},
		SheetEnabled:    p.sheetEnabled,
		PerChannelLimit: p.sched.DailyLimitPerChannel,
		WindowDays:      p.sched.WindowDays,
		ResourceLimits:  limits,
		CreatedAt:       now,
	}, nil
}
