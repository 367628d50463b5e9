// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/retrieval"
)

// Enforcement modes.
const (
	ModeFilter    = "filter"
	ModeRedact    = "redact"
	ModeAuditOnly = "audit_only"
)

// Violation kinds.
const (
	ViolationChannel = "channel_not_allowed"
	ViolationAge     = "max_age_exceeded"
)

// Builtin sensitive-content detectors. Operator patterns add to these.
var builtinPatterns = []Pattern{
	{Kind: "EMAIL", Re: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	{Kind: "PHONE", Re: regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)},
}

// Pattern is one sensitive-content detector.
type Pattern struct {
	Kind string
	Re   *regexp.Regexp
}

// Check names in the audit trail.
const (
	CheckChannel   = "channel"
	CheckAge       = "age"
	CheckSensitive = "sensitive"
)

// Violation records one policy hit against one chunk.
type Violation struct {
	ChunkID string `json:"chunk_id"`
	Kind    string `json:"kind"`
	Action  string `json:"action"`
}

// CheckResult is one policy check evaluated against one result.
type CheckResult struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
}

// AuditEntry records the full evaluation of one result, clean or not.
type AuditEntry struct {
	ChunkID         string        `json:"chunk_id"`
	Action          string        `json:"action"`
	Violations      []string      `json:"violations,omitempty"`
	ChecksPerformed []CheckResult `json:"checks_performed"`
	Timestamp       time.Time     `json:"timestamp"`
}

// Recorder persists policy violations for audit. Optional.
type Recorder interface {
	RecordPolicyViolation(ctx context.Context, requestID, chunkID, violation, action string, at time.Time) error
}

// Outcome is the enforced result set with one audit entry per evaluated hit.
type Outcome struct {
	Hits       []retrieval.FusedHit `json:"hits"`
	Violations []Violation          `json:"violations,omitempty"`
	Audit      []AuditEntry         `json:"audit_trail"`
	Action     string               `json:"action"`
}

// Enforcer applies retrieval-time content policy: channel allow-list,
// maximum content age, and sensitive-pattern handling. Channel and age
// violations always remove the hit (there is nothing to redact); the mode
// only decides what happens to sensitive matches. audit_only records
// everything and removes nothing.
type Enforcer struct {
	cfg      config.PolicyConfig
	allowed  map[string]bool
	patterns []Pattern
	recorder Recorder
}

// New compiles the policy. Operator patterns use "<KIND>:<regex>" syntax;
// a pattern that does not compile is a configuration error.
func New(cfg config.PolicyConfig, recorder Recorder) (*Enforcer, error) {
	e := &Enforcer{
		cfg:      cfg,
		patterns: append([]Pattern(nil), builtinPatterns...),
		recorder: recorder,
	}
	if len(cfg.AllowedChannels) > 0 {
		e.allowed = make(map[string]bool, len(cfg.AllowedChannels))
		for _, ch := range cfg.AllowedChannels {
			e.allowed[ch] = true
		}
	}
	for _, raw := range cfg.SensitivePatterns {
		kind, expr, ok := strings.Cut(raw, ":")
		if !ok || kind == "" || expr == "" {
			return nil, fmt.Errorf("sensitive pattern %q: want <KIND>:<regex>", raw)
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("sensitive pattern %q: %w", raw, err)
		}
		e.patterns = append(e.patterns, Pattern{Kind: strings.ToUpper(kind), Re: re})
	}
	return e, nil
}

// Apply enforces the policy over fused hits. Every hit gets an audit entry
// listing the checks run against it, whether or not anything was flagged.
func (e *Enforcer) Apply(ctx context.Context, requestID string, hits []retrieval.FusedHit) *Outcome {
	out := &Outcome{
		Action: e.cfg.Mode,
		Hits:   make([]retrieval.FusedHit, 0, len(hits)),
		Audit:  make([]AuditEntry, 0, len(hits)),
	}
	now := time.Now().UTC()

	for _, h := range hits {
		entry := AuditEntry{ChunkID: h.ChunkID, Timestamp: now}
		keep := true

		if e.allowed != nil {
			passed := e.allowed[h.ChannelID]
			entry.ChecksPerformed = append(entry.ChecksPerformed, CheckResult{Check: CheckChannel, Passed: passed})
			if !passed {
				keep = e.flagMetadata(ctx, requestID, h.ChunkID, ViolationChannel, keep, now, out, &entry)
			}
		}

		if e.cfg.MaxAgeDays > 0 {
			// A zero published_at sorts before any cutoff: unknown age fails.
			cutoff := now.AddDate(0, 0, -e.cfg.MaxAgeDays)
			passed := !h.PublishedAt.Before(cutoff)
			entry.ChecksPerformed = append(entry.ChecksPerformed, CheckResult{Check: CheckAge, Passed: passed})
			if !passed {
				keep = e.flagMetadata(ctx, requestID, h.ChunkID, ViolationAge, keep, now, out, &entry)
			}
		}

		redacted, kinds := e.applyPatterns(h.Preview)
		entry.ChecksPerformed = append(entry.ChecksPerformed, CheckResult{Check: CheckSensitive, Passed: len(kinds) == 0})
		for _, kind := range kinds {
			action := "audited"
			switch e.cfg.Mode {
			case ModeFilter:
				action = "filtered"
				keep = false
			case ModeRedact:
				action = "redacted"
				h.Preview = redacted
			}
			entry.Violations = append(entry.Violations, kind)
			e.record(ctx, requestID, h.ChunkID, kind, action, now, out)
		}

		switch {
		case !keep:
			entry.Action = "filtered"
		case len(entry.Violations) == 0:
			entry.Action = "retained"
		case e.cfg.Mode == ModeRedact:
			entry.Action = "redacted"
		default:
			entry.Action = "audited"
		}
		out.Audit = append(out.Audit, entry)

		if keep {
			out.Hits = append(out.Hits, h)
		}
	}
	return out
}

// flagMetadata records a channel or age violation. Metadata violations
// always remove the hit outside audit_only; there is nothing to redact.
func (e *Enforcer) flagMetadata(ctx context.Context, requestID, chunkID, kind string, keep bool, now time.Time, out *Outcome, entry *AuditEntry) bool {
	action := "filtered"
	if e.cfg.Mode == ModeAuditOnly {
		action = "audited"
	} else {
		keep = false
	}
	entry.Violations = append(entry.Violations, kind)
	e.record(ctx, requestID, chunkID, kind, action, now, out)
	return keep
}

// applyPatterns masks every sensitive match in text and returns the kinds
// found. Replacement tokens never rematch, so redaction is idempotent.
func (e *Enforcer) applyPatterns(text string) (string, []string) {
	var kinds []string
	for _, p := range e.patterns {
		if !p.Re.MatchString(text) {
			continue
		}
		kinds = append(kinds, p.Kind)
		text = p.Re.ReplaceAllString(text, "["+p.Kind+" REDACTED]")
	}
	return text, kinds
}

func (e *Enforcer) record(ctx context.Context, requestID, chunkID, kind, action string, at time.Time, out *Outcome) {
	out.Violations = append(out.Violations, Violation{ChunkID: chunkID, Kind: kind, Action: action})
	metrics.RecordPolicyViolation(kind, action)
	if e.recorder != nil {
		if err := e.recorder.RecordPolicyViolation(ctx, requestID, chunkID, kind, action, at); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("chunk_id", chunkID).Msg("policy audit write failed")
		}
	}
}
