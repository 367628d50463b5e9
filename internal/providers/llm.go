// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// summarySystemPrompt instructs the model to emit the structured summary
// shape. The prompt ID recorded on each Summary tracks which prompt version
// produced it.
const summarySystemPrompt = `You summarize video transcripts for a searchable knowledge base.
Respond with a single JSON object:
{"bullets": ["..."], "concepts": ["..."]}
bullets: 5-10 factual takeaways, each a standalone sentence.
concepts: 3-8 short topic tags a searcher might query.
Use only information from the transcript.`

// SummaryResult is the structured summarization output.
type SummaryResult struct {
	Bullets  []string
	Concepts []string
	PromptID string
	Usage    models.TokenUsage
}

// Summarizer turns a transcript into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, video *models.Video, transcript string) (*SummaryResult, error)
}

// LLMConfig configures the summarization model client.
type LLMConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	MaxOutputTokens int
	PromptID        string
	Timeout         time.Duration
}

// LLMClient summarizes transcripts through an OpenAI-compatible chat
// endpoint via langchaingo.
type LLMClient struct {
	cfg LLMConfig
	llm *openai.LLM
	cb  *gobreaker.CircuitBreaker[*llms.ContentResponse]
}

var _ Summarizer = (*LLMClient)(nil)

// NewLLMClient builds the summarizer client.
func NewLLMClient(cfg LLMConfig) (*LLMClient, error) {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	return &LLMClient{
		cfg: cfg,
		llm: llm,
		cb:  newBreaker[*llms.ContentResponse]("llm"),
	}, nil
}

// Summarize generates the structured summary for one transcript.
func (c *LLMClient) Summarize(ctx context.Context, video *models.Video, transcript string) (*SummaryResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, models.NewTerminal(models.ErrTypeInvalidInput,
			fmt.Errorf("empty transcript for %s", video.VideoID))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, summarySystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("Title: %s\n\nTranscript:\n%s", video.Title, transcript)),
	}

	start := time.Now()
	resp, err := c.cb.Execute(func() (*llms.ContentResponse, error) {
		resp, err := c.llm.GenerateContent(callCtx, messages,
			llms.WithMaxTokens(c.cfg.MaxOutputTokens),
			llms.WithTemperature(0.2),
			llms.WithJSONMode(),
		)
		if err != nil {
			return nil, classifyLLMErr(err)
		}
		return resp, nil
	})
	if err != nil {
		metrics.RecordProviderRequest("llm", "failure", time.Since(start))
		return nil, fmt.Errorf("summarize %s: %w", video.VideoID, breakerErr(err))
	}
	metrics.RecordProviderRequest("llm", "success", time.Since(start))

	if len(resp.Choices) == 0 {
		return nil, models.NewTransient(models.ErrTypeInternal,
			fmt.Errorf("llm returned no choices for %s", video.VideoID))
	}
	choice := resp.Choices[0]

	var parsed struct {
		Bullets  []string `json:"bullets"`
		Concepts []string `json:"concepts"`
	}
	if err := json.Unmarshal([]byte(choice.Content), &parsed); err != nil {
		return nil, models.NewTransient(models.ErrTypeInternal,
			fmt.Errorf("llm output for %s is not the expected JSON: %w", video.VideoID, err))
	}
	if len(parsed.Bullets) == 0 {
		return nil, models.NewTransient(models.ErrTypeInternal,
			fmt.Errorf("llm output for %s has no bullets", video.VideoID))
	}

	return &SummaryResult{
		Bullets:  parsed.Bullets,
		Concepts: parsed.Concepts,
		PromptID: c.cfg.PromptID,
		Usage: models.TokenUsage{
			Input:  generationInfoInt(choice.GenerationInfo, "PromptTokens"),
			Output: generationInfoInt(choice.GenerationInfo, "CompletionTokens"),
		},
	}, nil
}

func classifyLLMErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTransient(models.ErrTypeTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "unauthorized"):
		return models.NewTerminal(models.ErrTypeAuth, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return models.NewTransient(models.ErrTypeRateLimit, err)
	case strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context"):
		return models.NewTerminal(models.ErrTypeInvalidInput, err)
	default:
		return models.NewTransient(models.ErrTypeServiceUnavailable, err)
	}
}

func generationInfoInt(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
