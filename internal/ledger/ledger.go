// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/store"
)

// Service identifies a metered external dependency.
type Service string

const (
	// ServiceYouTube is metered in integer API quota units.
	ServiceYouTube Service = "youtube"

	// ServiceSpeechToText is metered in USD.
	ServiceSpeechToText Service = "speech_to_text"
)

// Defaults.
const (
	DefaultTimezone           = "Europe/Amsterdam"
	DefaultTranscriptionUSD   = 5.00
	DefaultYouTubeDailyUnits  = 10000
	warningThresholdFraction  = 0.80
	criticalThresholdFraction = 0.95
	dayKeyLayout              = "2006-01-02"
	alertTagBudgetWarning     = "budget_warning_80"
	alertTagBudgetCritical    = "budget_critical_95"
	alertTypeBudgetWarning    = "budget_warning"
	alertTypeBudgetCritical   = "budget_critical"
)

// Key prefixes inside the document store. The ledger owns these.
const (
	costKeyPrefix  = "cost:"
	quotaKeyPrefix = "quota:"
)

// ErrUnknownService is returned for services the ledger does not meter.
var ErrUnknownService = errors.New("unknown service")

// Decision is the outcome of a budget/quota check.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Remaining float64       `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}

// ResetInHours returns the reset window as fractional hours.
func (d Decision) ResetInHours() float64 {
	return d.ResetIn.Hours()
}

// Alerter delivers operational alerts. Satisfied by the alerting sink.
type Alerter interface {
	Notify(ctx context.Context, alertType, severity string, payload map[string]any) error
}

// Config controls the ledger.
type Config struct {
	// Timezone names the location whose midnight resets the day window.
	Timezone string

	// TranscriptionDailyUSD caps speech-to-text spend per day.
	TranscriptionDailyUSD float64

	// YouTubeDailyUnits caps listing-provider quota units per day.
	YouTubeDailyUnits float64

	// Alerts receives budget threshold alerts. Optional.
	Alerts Alerter
}

// Ledger is the budget and quota ledger.
type Ledger struct {
	store  *store.Store
	km     *store.KeyMutex
	alerts Alerter
	loc    *time.Location

	budgetUSD    float64
	youtubeUnits float64

	// now is swapped by tests to pin the clock.
	now func() time.Time
}

// New creates a Ledger. The configured timezone must resolve, since every
// reset-window computation depends on it.
func New(s *store.Store, cfg Config) (*Ledger, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.TranscriptionDailyUSD == 0 {
		cfg.TranscriptionDailyUSD = DefaultTranscriptionUSD
	}
	if cfg.YouTubeDailyUnits == 0 {
		cfg.YouTubeDailyUnits = DefaultYouTubeDailyUnits
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Ledger{
		store:        s,
		km:           store.NewKeyMutex(),
		alerts:       cfg.Alerts,
		loc:          loc,
		budgetUSD:    cfg.TranscriptionDailyUSD,
		youtubeUnits: cfg.YouTubeDailyUnits,
		now:          time.Now,
	}, nil
}

// Today returns the current accounting day key in the ledger timezone.
func (l *Ledger) Today() string {
	return l.now().In(l.loc).Format(dayKeyLayout)
}

// ResetIn returns the duration until the next local midnight.
func (l *Ledger) ResetIn() time.Duration {
	local := l.now().In(l.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc).AddDate(0, 0, 1)
	return midnight.Sub(local)
}

// windowStart returns the start of the current accounting day.
func (l *Ledger) windowStart() time.Time {
	local := l.now().In(l.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc)
}

func (l *Ledger) limitFor(service Service) (float64, error) {
	switch service {
	case ServiceYouTube:
		return l.youtubeUnits, nil
	case ServiceSpeechToText:
		return l.budgetUSD, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
}

func quotaKey(service Service, day string) string {
	return quotaKeyPrefix + string(service) + ":" + day
}

func costKey(day string) string {
	return costKeyPrefix + day
}

// Check reports whether requestedUnits fits inside the remaining daily
// allowance for service. It never mutates state.
func (l *Ledger) Check(ctx context.Context, service Service, requestedUnits float64) (Decision, error) {
	limit, err := l.limitFor(service)
	if err != nil {
		return Decision{}, err
	}

	day := l.Today()
	l.km.Lock(day)
	defer l.km.Unlock(day)

	var counter models.QuotaCounter
	err = l.store.Get(ctx, quotaKey(service, day), &counter)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return Decision{}, err
	}

	used := counter.Units
	if service == ServiceSpeechToText {
		used = counter.CostUSD
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   used+requestedUnits <= limit,
		Remaining: remaining,
		ResetIn:   l.ResetIn(),
	}

	metrics.RecordLedgerCheck(string(service), d.Allowed)
	if !d.Allowed {
		logging.Ctx(ctx).Warn().
			Str("service", string(service)).
			Float64("requested", requestedUnits).
			Float64("remaining", remaining).
			Dur("reset_in", d.ResetIn).
			Msg("Ledger denied request")
	}
	return d, nil
}

// Record accounts usedUnits and costUSD against today's window and updates
// the day's cost aggregate. Crossing a budget threshold emits its alert
// exactly once per day; the sent mark commits in the same transaction as
// the spend so restarts cannot duplicate it.
func (l *Ledger) Record(ctx context.Context, service Service, usedUnits, costUSD float64) error {
	if _, err := l.limitFor(service); err != nil {
		return err
	}

	day := l.Today()
	l.km.Lock(day)
	defer l.km.Unlock(day)

	var crossedWarning, crossedCritical bool
	var spent, usedTotal float64

	err := l.store.Update(ctx, "ledger_record", func(txn *badger.Txn) error {
		crossedWarning, crossedCritical = false, false

		var counter models.QuotaCounter
		err := store.GetJSON(txn, quotaKey(service, day), &counter)
		if errors.Is(err, store.ErrKeyNotFound) {
			counter = models.QuotaCounter{
				Service:   string(service),
				Day:       day,
				LastReset: l.windowStart(),
			}
		} else if err != nil {
			return err
		}
		counter.Units += usedUnits
		counter.CostUSD += costUSD
		usedTotal = counter.Units
		if err := store.SetJSON(txn, quotaKey(service, day), counter); err != nil {
			return err
		}

		var agg models.CostAggregate
		err = store.GetJSON(txn, costKey(day), &agg)
		if errors.Is(err, store.ErrKeyNotFound) {
			agg = models.CostAggregate{Day: day}
		} else if err != nil {
			return err
		}

		if service == ServiceSpeechToText {
			agg.TranscriptionUSD += costUSD
			if costUSD > 0 {
				agg.TranscriptCount++
			}

			spent = agg.TranscriptionUSD
			if spent >= l.budgetUSD*warningThresholdFraction && !agg.HasAlert(alertTagBudgetWarning) {
				agg.AlertsSent = append(agg.AlertsSent, alertTagBudgetWarning)
				crossedWarning = true
			}
			if spent >= l.budgetUSD*criticalThresholdFraction && !agg.HasAlert(alertTagBudgetCritical) {
				agg.AlertsSent = append(agg.AlertsSent, alertTagBudgetCritical)
				crossedCritical = true
			}
		}
		agg.LastUpdated = l.now().UTC()
		return store.SetJSON(txn, costKey(day), agg)
	})
	if err != nil {
		return err
	}

	if service == ServiceSpeechToText {
		metrics.LedgerSpendUSD.WithLabelValues(string(service)).Set(spent)
	} else {
		metrics.LedgerSpendUSD.WithLabelValues(string(service)).Set(usedTotal)
	}

	if crossedWarning {
		metrics.LedgerThresholdCrossings.WithLabelValues("warning").Inc()
		l.emitThreshold(ctx, alertTypeBudgetWarning, "warning", day, spent)
	}
	if crossedCritical {
		metrics.LedgerThresholdCrossings.WithLabelValues("critical").Inc()
		l.emitThreshold(ctx, alertTypeBudgetCritical, "critical", day, spent)
	}
	return nil
}

func (l *Ledger) emitThreshold(ctx context.Context, alertType, severity, day string, spent float64) {
	logging.Ctx(ctx).Warn().
		Str("alert_type", alertType).
		Str("day", day).
		Float64("spent_usd", spent).
		Float64("budget_usd", l.budgetUSD).
		Msg("Budget threshold crossed")

	if l.alerts == nil {
		return
	}
	payload := map[string]any{
		"day":        day,
		"spent_usd":  spent,
		"budget_usd": l.budgetUSD,
	}
	if err := l.alerts.Notify(ctx, alertType, severity, payload); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("alert_type", alertType).Msg("Budget alert emission failed")
	}
}

// Aggregate returns the cost aggregate for the given day key. Missing days
// return a zero aggregate, not an error.
func (l *Ledger) Aggregate(ctx context.Context, day string) (models.CostAggregate, error) {
	var agg models.CostAggregate
	err := l.store.Get(ctx, costKey(day), &agg)
	if errors.Is(err, store.ErrKeyNotFound) {
		return models.CostAggregate{Day: day}, nil
	}
	if err != nil {
		return models.CostAggregate{}, err
	}
	return agg, nil
}

// Snapshot returns headroom for every metered service today. Used by run
// planning and the observability emitter.
func (l *Ledger) Snapshot(ctx context.Context) ([]models.QuotaSnapshot, error) {
	day := l.Today()
	services := []Service{ServiceYouTube, ServiceSpeechToText}

	snaps := make([]models.QuotaSnapshot, 0, len(services))
	for _, svc := range services {
		limit, err := l.limitFor(svc)
		if err != nil {
			return nil, err
		}

		var counter models.QuotaCounter
		err = l.store.Get(ctx, quotaKey(svc, day), &counter)
		if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
			return nil, err
		}

		used := counter.Units
		if svc == ServiceSpeechToText {
			used = counter.CostUSD
		}
		snaps = append(snaps, models.QuotaSnapshot{
			Service:  string(svc),
			Used:     used,
			Limit:    limit,
			Headroom: headroom(used, limit),
		})
	}
	return snaps, nil
}

// headroom returns the unused fraction of the limit, clamped to [0, 1].
func headroom(used, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	h := 1 - used/limit
	if h < 0 {
		return 0
	}
	if h > 1 {
		return 1
	}
	return h
}
