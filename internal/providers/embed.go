// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/tomtom215/scriptorium/internal/cache"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// Embedder turns chunk texts into vectors.
type Embedder interface {
	// EmbedChunks returns one vector per chunk, in order.
	EmbedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error)

	// EmbedQuery embeds a single retrieval query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions is the vector width the semantic sink must match.
	Dimensions() int
}

// EmbedConfig configures the embedding client.
type EmbedConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	CacheSize  int
}

// EmbedClient calls an OpenAI-compatible embeddings endpoint via
// langchaingo. Vectors are memoized by content digest: chunk texts are
// immutable per digest, so replays and re-index runs hit the cache instead
// of the billed API.
type EmbedClient struct {
	cfg EmbedConfig
	llm *openai.LLM
	cb  *gobreaker.CircuitBreaker[[][]float32]

	vectors *cache.LRU[[]float32]
}

var _ Embedder = (*EmbedClient)(nil)

// NewEmbedClient builds the embedding client.
func NewEmbedClient(cfg EmbedConfig) (*EmbedClient, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	return &EmbedClient{
		cfg:     cfg,
		llm:     llm,
		cb:      newBreaker[[][]float32]("embedding"),
		vectors: cache.NewLRU[[]float32](cfg.CacheSize),
	}, nil
}

// Dimensions returns the configured vector width.
func (c *EmbedClient) Dimensions() int { return c.cfg.Dimensions }

// EmbedChunks embeds the chunk texts, serving cached vectors where the
// content digest matches and batching only the misses to the API.
func (c *EmbedClient) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	out := make([][]float32, len(chunks))

	var (
		missTexts []string
		missIdx   []int
	)
	for i, ch := range chunks {
		if vec, ok := c.vectors.Get(ch.ContentSHA256); ok {
			metrics.EmbeddingCacheHits.Inc()
			out[i] = vec
			continue
		}
		metrics.EmbeddingCacheMisses.Inc()
		missTexts = append(missTexts, ch.Text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, models.NewTransient(models.ErrTypeInternal,
			fmt.Errorf("embedding count mismatch: sent %d, got %d", len(missTexts), len(vectors)))
	}

	for j, vec := range vectors {
		if len(vec) != c.cfg.Dimensions {
			return nil, models.NewTerminal(models.ErrTypeInvalidInput,
				fmt.Errorf("embedding width %d does not match configured %d", len(vec), c.cfg.Dimensions))
		}
		i := missIdx[j]
		out[i] = vec
		c.vectors.Add(chunks[i].ContentSHA256, vec)
	}
	return out, nil
}

// EmbedQuery embeds one retrieval query. Queries are not cached: they are
// rarely repeated verbatim and would evict chunk vectors.
func (c *EmbedClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, models.NewTransient(models.ErrTypeInternal,
			fmt.Errorf("expected 1 query vector, got %d", len(vectors)))
	}
	return vectors[0], nil
}

func (c *EmbedClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	vectors, err := c.cb.Execute(func() ([][]float32, error) {
		vectors, err := c.llm.CreateEmbedding(callCtx, texts)
		if err != nil {
			return nil, classifyLLMErr(err)
		}
		return vectors, nil
	})
	if err != nil {
		metrics.RecordProviderRequest("embedding", "failure", time.Since(start))
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), breakerErr(err))
	}
	metrics.RecordProviderRequest("embedding", "success", time.Since(start))
	return vectors, nil
}
