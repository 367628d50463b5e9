// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package retrieval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/sinks"
)

// Routing modes.
const (
	ModeAdaptive = "adaptive"
	ModeAlwaysOn = "always_on"
	ModeForced   = "forced"
)

// Query intents.
const (
	IntentConceptual = "conceptual"
	IntentFactual    = "factual"
	IntentMixed      = "mixed"
	IntentUnknown    = "unknown"
)

// Filter strengths.
const (
	FilterStrong   = "strong"
	FilterModerate = "moderate"
	FilterNone     = "none"
)

// Strategy tags carried on every adaptive decision.
const (
	StrategyFilterOptimized   = "filter_optimized"
	StrategySemanticOptimized = "semantic_optimized"
	StrategyKeywordOptimized  = "keyword_optimized"
	StrategyComprehensive     = "comprehensive"
	StrategyFallback          = "fallback"
)

// Decision is the router's source selection with its strategy and rationale.
type Decision struct {
	Mode     string   `json:"mode"`
	Strategy string   `json:"strategy"`
	Sources  []string `json:"sources"`
	Reason   string   `json:"reason"`
}

// Router picks which sources answer a query. Adaptive mode classifies the
// query's intent and the strength of its metadata filters, then walks a
// first-match rule table; always_on fans out to every source; forced pins
// the operator's list. Unavailable sources are dropped with the rationale
// recorded.
type Router struct {
	cfg config.RoutingConfig
}

// NewRouter builds the source router.
func NewRouter(cfg config.RoutingConfig) *Router {
	return &Router{cfg: cfg}
}

var allSources = []string{sinks.SinkSemantic, sinks.SinkKeyword, sinks.SinkStructured}

// conceptualMarkers signal a meaning-seeking query.
var conceptualMarkers = []string{"how", "why", "explain", "concept", "framework"}

// factualMarkers signal a lookup for a specific fact.
var factualMarkers = []string{"when", "who", "where", "which"}

// numericToken matches bare numbers and common numeric date shapes.
var numericToken = regexp.MustCompile(`^\d+([./:-]\d+)*$`)

// Route selects sources for the query given the currently available set.
func (r *Router) Route(q Query, available []string) Decision {
	switch r.cfg.Mode {
	case ModeForced:
		d := Decision{Mode: ModeForced, Strategy: ModeForced, Sources: normalizeSources(r.cfg.ForcedSources), Reason: "operator pinned"}
		return dropUnavailable(d, available)
	case ModeAlwaysOn:
		d := Decision{Mode: ModeAlwaysOn, Strategy: ModeAlwaysOn, Sources: allSources, Reason: "fan out to all sources"}
		return dropUnavailable(d, available)
	}
	return dropUnavailable(r.adapt(q), available)
}

// adapt applies the first-match rule table over intent and filter strength.
func (r *Router) adapt(q Query) Decision {
	intent := classifyIntent(q.Text)
	strength := filterStrength(q.Filters)

	d := Decision{Mode: ModeAdaptive, Reason: fmt.Sprintf("intent=%s filters=%s", intent, strength)}
	switch {
	case strength == FilterStrong:
		d.Strategy = StrategyFilterOptimized
		d.Sources = []string{sinks.SinkKeyword, sinks.SinkStructured}
	case strength == FilterNone && intent == IntentConceptual:
		d.Strategy = StrategySemanticOptimized
		d.Sources = []string{sinks.SinkSemantic, sinks.SinkKeyword}
	case strength == FilterModerate && intent == IntentFactual:
		d.Strategy = StrategyKeywordOptimized
		d.Sources = []string{sinks.SinkKeyword, sinks.SinkStructured}
	case intent == IntentMixed:
		d.Strategy = StrategyComprehensive
		d.Sources = allSources
	default:
		d.Strategy = StrategyFallback
		d.Sources = allSources
	}
	return d
}

// classifyIntent buckets the query by its marker words. Bare numbers and
// numeric dates count as factual signals.
func classifyIntent(text string) string {
	words := tokenize(text)
	conceptual := containsAny(words, conceptualMarkers)
	factual := containsAny(words, factualMarkers)
	if !factual {
		for _, w := range words {
			if numericToken.MatchString(w) {
				factual = true
				break
			}
		}
	}
	switch {
	case conceptual && factual:
		return IntentMixed
	case conceptual:
		return IntentConceptual
	case factual:
		return IntentFactual
	}
	return IntentUnknown
}

// filterStrength grades the metadata filters: strong needs a channel AND a
// date bound; exactly one of the two is moderate.
func filterStrength(f sinks.Filters) string {
	channel := f.ChannelID != ""
	dateRange := !f.PublishedAfter.IsZero() || !f.PublishedBefore.IsZero()
	switch {
	case channel && dateRange:
		return FilterStrong
	case channel || dateRange:
		return FilterModerate
	}
	return FilterNone
}

func tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		words[i] = strings.Trim(w, `.,!?:;"'`)
	}
	return words
}

func containsAny(words []string, markers []string) bool {
	for _, w := range words {
		for _, m := range markers {
			if w == m {
				return true
			}
		}
	}
	return false
}

// dropUnavailable removes sources that are not currently answerable. A
// selection emptied this way falls back to everything still available.
func dropUnavailable(d Decision, available []string) Decision {
	if available == nil {
		return d
	}
	up := make(map[string]bool, len(available))
	for _, name := range available {
		up[name] = true
	}

	var kept, dropped []string
	for _, name := range d.Sources {
		if up[name] {
			kept = append(kept, name)
		} else {
			dropped = append(dropped, name)
		}
	}
	if len(dropped) > 0 {
		d.Reason += " (unavailable: " + strings.Join(dropped, ", ") + ")"
	}
	if len(kept) == 0 && len(available) > 0 {
		d.Strategy = StrategyFallback
		d.Reason += "; falling back to available sources"
		kept = append(kept, available...)
	}
	d.Sources = kept
	return d
}

// normalizeSources drops unknown names, preserving order. An empty result
// falls back to every source rather than none.
func normalizeSources(names []string) []string {
	known := map[string]bool{
		sinks.SinkSemantic:   true,
		sinks.SinkKeyword:    true,
		sinks.SinkStructured: true,
	}
	var out []string
	for _, n := range names {
		if known[n] {
			out = append(out, n)
			known[n] = false
		}
	}
	if len(out) == 0 {
		return allSources
	}
	return out
}
