// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/sinks"
)

// ErrNoSourcesAvailable means every routed source failed or timed out.
var ErrNoSourcesAvailable = errors.New("no retrieval sources available")

// maxTopK is the hard cap on requested result count.
const maxTopK = 100

// SourceReport describes one source's contribution to a response.
type SourceReport struct {
	Name       string `json:"name"`
	HitCount   int    `json:"hit_count"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
}

// Response is a fused retrieval result.
type Response struct {
	Hits     []FusedHit     `json:"hits"`
	Routing  Decision       `json:"routing"`
	Sources  []SourceReport `json:"sources"`
	Degraded bool           `json:"degraded"`
	Duration time.Duration  `json:"-"`
}

// Engine fans a query out to the routed sources, bounds each with its own
// deadline, and fuses whatever came back. Missing sources degrade the
// response instead of failing it; only a full wipeout is an error.
type Engine struct {
	router  *Router
	sources map[string]Source
	cfg     config.RetrievalConfig
}

// NewEngine builds the retrieval engine over the given sources.
func NewEngine(router *Router, cfg config.RetrievalConfig, sources ...Source) *Engine {
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &Engine{router: router, sources: byName, cfg: cfg}
}

// Retrieve answers one query.
func (e *Engine) Retrieve(ctx context.Context, q Query) (*Response, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, models.NewTerminal(models.ErrTypeInvalidInput, errors.New("empty query"))
	}
	if q.TopK < 0 {
		q.TopK = e.cfg.TopK
	}
	if q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	// A zero top_k is answerable without touching any source.
	if q.TopK == 0 {
		return &Response{Hits: []FusedHit{}, Routing: e.router.Route(q, e.availableSources())}, nil
	}

	start := time.Now()
	decision := e.router.Route(q, e.availableSources())

	var (
		mu      sync.Mutex
		lists   = make(map[string][]sinks.Hit, len(decision.Sources))
		reports = make([]SourceReport, 0, len(decision.Sources))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range decision.Sources {
		source, ok := e.sources[name]
		if !ok {
			mu.Lock()
			reports = append(reports, SourceReport{Name: name, Error: "source not wired"})
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			report := e.querySource(gctx, source, q, &mu, lists)
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	answered := 0
	for _, r := range reports {
		if r.Error == "" {
			answered++
		}
	}
	if answered == 0 {
		metrics.RecordRetrieval(decision.Mode, "failed", time.Since(start), 0)
		return nil, models.NewTransient(models.ErrTypeServiceUnavailable,
			fmt.Errorf("%w: %d sources queried", ErrNoSourcesAvailable, len(decision.Sources)))
	}

	var hits []FusedHit
	if e.cfg.WeightedFusion.Enabled {
		hits = fuseWeighted(e.cfg.WeightedFusion, lists)
	} else {
		hits = fuseRRF(e.cfg.RRFK, lists)
	}
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}

	resp := &Response{
		Hits:     hits,
		Routing:  decision,
		Sources:  reports,
		Degraded: answered < len(decision.Sources),
		Duration: time.Since(start),
	}

	status := "ok"
	if resp.Degraded {
		status = "degraded"
	}
	metrics.RecordRetrieval(decision.Mode, status, resp.Duration, len(hits))
	logging.Ctx(ctx).Debug().
		Str("mode", decision.Mode).
		Strs("sources", decision.Sources).
		Bool("degraded", resp.Degraded).
		Int("hits", len(hits)).
		Msg("retrieval complete")
	return resp, nil
}

// availableSources lists the wired sources in canonical order.
func (e *Engine) availableSources() []string {
	out := make([]string, 0, len(e.sources))
	for _, name := range allSources {
		if _, ok := e.sources[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// querySource runs one source under its own deadline and merges its hits.
func (e *Engine) querySource(ctx context.Context, source Source, q Query, mu *sync.Mutex, lists map[string][]sinks.Hit) SourceReport {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.PerSourceTimeout())
	defer cancel()

	start := time.Now()
	hits, err := source.Search(sctx, q)
	elapsed := time.Since(start)

	report := SourceReport{
		Name:       source.Name(),
		DurationMS: elapsed.Milliseconds(),
	}
	reason := "ok"
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		report.TimedOut = true
		report.Error = "timeout"
		reason = "timeout"
	case err != nil:
		report.Error = err.Error()
		reason = "error"
	default:
		report.HitCount = len(hits)
		mu.Lock()
		lists[source.Name()] = hits
		mu.Unlock()
	}
	metrics.RecordSourceQuery(source.Name(), elapsed, reason)
	return report
}
