// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// TranscriptResult is the completed speech-to-text output.
type TranscriptResult struct {
	Text             string
	Language         string
	AudioDurationSec int
	CostUSD          float64
}

// Transcriber produces a transcript for a discovered video.
type Transcriber interface {
	// Transcribe submits the job and polls until it settles.
	Transcribe(ctx context.Context, video *models.Video) (*TranscriptResult, error)

	// EstimateCostUSD prices a transcription before submission so the
	// ledger can gate it.
	EstimateCostUSD(durationSec int) float64
}

// SpeechConfig configures the speech-to-text client.
type SpeechConfig struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	PollBase         time.Duration
	PollCap          time.Duration
	PollMaxAttempts  int
	RatePerMinuteUSD float64
}

// SpeechClient drives an async submit-then-poll transcription API. Polling
// backs off exponentially from PollBase to PollCap; a job still unsettled
// after PollMaxAttempts polls is treated as a transient timeout so the
// dispatcher can retry it later.
type SpeechClient struct {
	cfg        SpeechConfig
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*speechJob]
}

var _ Transcriber = (*SpeechClient)(nil)

// speechJob is the provider's job resource.
type speechJob struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	Text             string  `json:"text"`
	LanguageCode     string  `json:"language_code"`
	AudioDurationSec int     `json:"audio_duration_sec"`
	Error            string  `json:"error"`
	Confidence       float64 `json:"confidence"`
}

// NewSpeechClient builds the speech-to-text client.
func NewSpeechClient(cfg SpeechConfig) *SpeechClient {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollBase <= 0 {
		cfg.PollBase = 5 * time.Second
	}
	if cfg.PollCap < cfg.PollBase {
		cfg.PollCap = 30 * time.Second
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 60
	}
	return &SpeechClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cb:         newBreaker[*speechJob]("speech"),
	}
}

// EstimateCostUSD prices per audio minute, rounded up to whole minutes the
// way the provider bills.
func (c *SpeechClient) EstimateCostUSD(durationSec int) float64 {
	minutes := (durationSec + 59) / 60
	return float64(minutes) * c.cfg.RatePerMinuteUSD
}

// Transcribe submits the video and polls the job to completion.
func (c *SpeechClient) Transcribe(ctx context.Context, video *models.Video) (*TranscriptResult, error) {
	job, err := c.submit(ctx, video)
	if err != nil {
		return nil, fmt.Errorf("submit transcription for %s: %w", video.VideoID, err)
	}

	logging.Ctx(ctx).Debug().
		Str("job_id", job.ID).
		Str("video_id", video.VideoID).
		Msg("transcription submitted")

	job, err = c.poll(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("poll transcription %s: %w", job.ID, err)
	}

	duration := job.AudioDurationSec
	if duration == 0 {
		duration = video.DurationSec
	}
	return &TranscriptResult{
		Text:             job.Text,
		Language:         job.LanguageCode,
		AudioDurationSec: duration,
		CostUSD:          c.EstimateCostUSD(duration),
	}, nil
}

func (c *SpeechClient) submit(ctx context.Context, video *models.Video) (*speechJob, error) {
	start := time.Now()
	job, err := c.cb.Execute(func() (*speechJob, error) {
		payload, err := json.Marshal(map[string]string{
			"video_id": video.VideoID,
			"language": "auto",
		})
		if err != nil {
			return nil, models.NewTerminal(models.ErrTypeInvalidInput, err)
		}
		return c.doJob(ctx, http.MethodPost, "/v1/transcripts", payload)
	})
	if err != nil {
		metrics.RecordProviderRequest("speech", "failure", time.Since(start))
		return nil, breakerErr(err)
	}
	metrics.RecordProviderRequest("speech", "success", time.Since(start))
	return job, nil
}

// poll checks the job with exponential backoff until it settles or the
// attempt budget runs out.
func (c *SpeechClient) poll(ctx context.Context, jobID string) (*speechJob, error) {
	delay := c.cfg.PollBase
	for attempt := 1; attempt <= c.cfg.PollMaxAttempts; attempt++ {
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}

		job, err := c.cb.Execute(func() (*speechJob, error) {
			return c.doJob(ctx, http.MethodGet, "/v1/transcripts/"+jobID, nil)
		})
		if err != nil {
			return nil, breakerErr(err)
		}

		switch job.Status {
		case "completed":
			metrics.TranscriptionPollAttempts.Observe(float64(attempt))
			return job, nil
		case "error":
			return nil, classifyJobError(job)
		case "queued", "processing":
			// keep polling
		default:
			return nil, models.NewTransient(models.ErrTypeInternal,
				fmt.Errorf("unknown transcription status %q", job.Status))
		}

		delay *= 2
		if delay > c.cfg.PollCap {
			delay = c.cfg.PollCap
		}
	}
	return nil, models.NewTransient(models.ErrTypeTimeout,
		fmt.Errorf("transcription %s not settled after %d polls", jobID, c.cfg.PollMaxAttempts))
}

// classifyJobError maps provider-reported job failures. Media problems are
// terminal; anything else gets the retry path.
func classifyJobError(job *speechJob) error {
	err := fmt.Errorf("transcription failed: %s", job.Error)
	msg := strings.ToLower(job.Error)
	switch {
	case strings.Contains(msg, "unsupported") || strings.Contains(msg, "codec") || strings.Contains(msg, "format"):
		return models.NewTerminal(models.ErrTypeUnsupportedMedia, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "unavailable video"):
		return models.NewTerminal(models.ErrTypeNotFound, err)
	default:
		return models.NewTransient(models.ErrTypeServiceUnavailable, err)
	}
}

func (c *SpeechClient) doJob(ctx context.Context, method, path string, body []byte) (*speechJob, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, models.NewTerminal(models.ErrTypeInvalidInput, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, classifyStatus("speech", resp)
	}

	var job speechJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, models.NewTransient(models.ErrTypeInternal, fmt.Errorf("decode transcription job: %w", err))
	}
	return &job, nil
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
