// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package retrieval

import (
	"sort"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/sinks"
)

// FusedHit is one chunk after cross-source fusion.
type FusedHit struct {
	sinks.Hit
	FusedScore float64  `json:"fused_score"`
	Sources    []string `json:"sources"`

	// maxRaw is the best per-source raw score, kept for tie-breaking.
	maxRaw float64
}

// fuseRRF merges ranked lists with reciprocal rank fusion: each hit earns
// 1/(k + rank) per list it appears in. Raw scores never mix across
// sources; they only break fused-score ties (then chunk ID, ascending,
// for determinism).
func fuseRRF(k int, lists map[string][]sinks.Hit) []FusedHit {
	byChunk := make(map[string]*FusedHit)
	for source, hits := range lists {
		for rank, hit := range hits {
			fh, ok := byChunk[hit.ChunkID]
			if !ok {
				fh = &FusedHit{Hit: hit}
				byChunk[hit.ChunkID] = fh
			}
			fh.FusedScore += 1.0 / float64(k+rank+1)
			fh.Sources = append(fh.Sources, source)
			if hit.Score > fh.maxRaw {
				fh.maxRaw = hit.Score
			}
		}
	}
	return sortFused(byChunk)
}

// fuseWeighted is the experimental mode: per-source scores are min-max
// normalized into [0,1], then combined with operator weights.
func fuseWeighted(w config.WeightsConfig, lists map[string][]sinks.Hit) []FusedHit {
	weights := map[string]float64{
		sinks.SinkSemantic:   w.Semantic,
		sinks.SinkKeyword:    w.Keyword,
		sinks.SinkStructured: w.Structured,
	}

	byChunk := make(map[string]*FusedHit)
	for source, hits := range lists {
		lo, hi := scoreRange(hits)
		for _, hit := range hits {
			norm := 1.0
			if hi > lo {
				norm = (hit.Score - lo) / (hi - lo)
			}
			fh, ok := byChunk[hit.ChunkID]
			if !ok {
				fh = &FusedHit{Hit: hit}
				byChunk[hit.ChunkID] = fh
			}
			fh.FusedScore += weights[source] * norm
			fh.Sources = append(fh.Sources, source)
			if hit.Score > fh.maxRaw {
				fh.maxRaw = hit.Score
			}
		}
	}
	return sortFused(byChunk)
}

func scoreRange(hits []sinks.Hit) (lo, hi float64) {
	for i, h := range hits {
		if i == 0 || h.Score < lo {
			lo = h.Score
		}
		if i == 0 || h.Score > hi {
			hi = h.Score
		}
	}
	return lo, hi
}

func sortFused(byChunk map[string]*FusedHit) []FusedHit {
	out := make([]FusedHit, 0, len(byChunk))
	for _, fh := range byChunk {
		sort.Strings(fh.Sources)
		out = append(out, *fh)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].maxRaw != out[j].maxRaw {
			return out[i].maxRaw > out[j].maxRaw
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
