// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tomtom215/scriptorium/internal/blob"
	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/chunk"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/providers"
	"github.com/tomtom215/scriptorium/internal/sinks"
)

// IndexStage chunks the transcript, embeds the chunks, and writes all
// three retrieval sinks. In lenient mode the semantic sink is required and
// the other two are best effort; strict mode requires all three.
type IndexStage struct {
	catalog  *catalog.Catalog
	blobs    *blob.Store
	chunker  *chunk.Chunker
	embedder providers.Embedder

	semantic  *sinks.SemanticSink
	keyword   *sinks.KeywordSink
	warehouse *sinks.Warehouse
	strictAll bool
}

// NewIndexStage builds the indexing stage.
func NewIndexStage(cat *catalog.Catalog, blobs *blob.Store, chunker *chunk.Chunker, embedder providers.Embedder,
	semantic *sinks.SemanticSink, keyword *sinks.KeywordSink, warehouse *sinks.Warehouse, strictAll bool) *IndexStage {
	return &IndexStage{
		catalog:   cat,
		blobs:     blobs,
		chunker:   chunker,
		embedder:  embedder,
		semantic:  semantic,
		keyword:   keyword,
		warehouse: warehouse,
		strictAll: strictAll,
	}
}

func (s *IndexStage) JobType() string          { return JobIndex }
func (s *IndexStage) From() models.VideoStatus { return models.StatusSummarized }
func (s *IndexStage) To() models.VideoStatus   { return models.StatusIndexed }

// Run indexes the video's transcript into the retrieval sinks. Chunk IDs
// and content digests make every write replay-safe.
func (s *IndexStage) Run(ctx context.Context, video models.Video) (*Result, error) {
	transcript, err := s.catalog.GetTranscript(ctx, video.VideoID)
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", video.VideoID, err)
	}
	ref, ok := transcript.ArtifactRefs[string(models.ArtifactTranscriptText)]
	if !ok {
		return nil, models.NewTerminal(models.ErrTypeInvalidInput,
			fmt.Errorf("transcript %s has no text artifact", video.VideoID))
	}
	data, err := s.blobs.Get(ref)
	if err != nil {
		return nil, models.NewTransient(models.ErrTypeStorageUnavailable, err)
	}

	chunks, err := s.chunker.Split(&video, string(data))
	if err != nil {
		return nil, models.NewTerminal(models.ErrTypeInvalidInput,
			fmt.Errorf("chunk transcript %s: %w", video.VideoID, err))
	}

	vectors, err := s.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	// Purge-then-write per sink: a re-run after a tokenizer or chunking
	// change must not leave stale ordinals behind the fresh rows.
	// Semantic is the primary sink; its failure always fails the job.
	if err := s.semantic.DeleteVideo(ctx, video.VideoID); err != nil {
		return nil, err
	}
	if err := s.semantic.WriteChunks(ctx, chunks, vectors); err != nil {
		return nil, err
	}

	var failed []string
	if err := s.reindexKeyword(ctx, video.VideoID, chunks); err != nil {
		if s.strictAll {
			return nil, err
		}
		failed = append(failed, sinks.SinkKeyword)
		logging.Ctx(ctx).Warn().Err(err).Msg("keyword sink write failed, continuing lenient")
	}
	if err := s.reindexWarehouse(ctx, video.VideoID, chunks); err != nil {
		if s.strictAll {
			return nil, err
		}
		failed = append(failed, sinks.SinkStructured)
		logging.Ctx(ctx).Warn().Err(err).Msg("warehouse sink write failed, continuing lenient")
	}
	if err := s.warehouse.UpsertVideo(ctx, &video); err != nil && s.strictAll {
		return nil, err
	}

	outputs := map[string]string{
		"chunks": strconv.Itoa(len(chunks)),
	}
	status := ResultSuccess
	if len(failed) > 0 {
		status = ResultPartial
		for _, sink := range failed {
			outputs["failed_"+sink] = "write_error"
		}
	}
	return &Result{Status: status, Outputs: outputs}, nil
}

func (s *IndexStage) reindexKeyword(ctx context.Context, videoID string, chunks []models.Chunk) error {
	if err := s.keyword.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	return s.keyword.WriteChunks(ctx, chunks)
}

func (s *IndexStage) reindexWarehouse(ctx context.Context, videoID string, chunks []models.Chunk) error {
	if err := s.warehouse.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	return s.warehouse.WriteChunks(ctx, chunks)
}
