// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package retrieval

import (
	"context"

	"github.com/tomtom215/scriptorium/internal/providers"
	"github.com/tomtom215/scriptorium/internal/sinks"
)

// Query is one retrieval request after routing.
type Query struct {
	Text    string
	TopK    int
	Filters sinks.Filters
}

// Source answers a query from one retrieval backend.
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]sinks.Hit, error)
}

// SemanticSource embeds the query and searches the vector sink.
type SemanticSource struct {
	embedder providers.Embedder
	sink     *sinks.SemanticSink
}

// NewSemanticSource wires the embedder to the semantic sink.
func NewSemanticSource(embedder providers.Embedder, sink *sinks.SemanticSink) *SemanticSource {
	return &SemanticSource{embedder: embedder, sink: sink}
}

func (s *SemanticSource) Name() string { return sinks.SinkSemantic }

func (s *SemanticSource) Search(ctx context.Context, q Query) ([]sinks.Hit, error) {
	vector, err := s.embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	return s.sink.Search(ctx, vector, q.TopK, q.Filters)
}

// KeywordSource searches the lexical sink.
type KeywordSource struct {
	sink *sinks.KeywordSink
}

// NewKeywordSource wraps the keyword sink.
func NewKeywordSource(sink *sinks.KeywordSink) *KeywordSource {
	return &KeywordSource{sink: sink}
}

func (s *KeywordSource) Name() string { return sinks.SinkKeyword }

func (s *KeywordSource) Search(ctx context.Context, q Query) ([]sinks.Hit, error) {
	return s.sink.Search(ctx, q.Text, q.TopK, q.Filters)
}

// StructuredSource searches the metadata warehouse.
type StructuredSource struct {
	warehouse *sinks.Warehouse
}

// NewStructuredSource wraps the warehouse.
func NewStructuredSource(warehouse *sinks.Warehouse) *StructuredSource {
	return &StructuredSource{warehouse: warehouse}
}

func (s *StructuredSource) Name() string { return sinks.SinkStructured }

func (s *StructuredSource) Search(ctx context.Context, q Query) ([]sinks.Hit, error) {
	return s.warehouse.Search(ctx, q.Text, q.TopK, q.Filters)
}
