// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/scriptorium/internal/models"
)

func speechTestConfig(baseURL string) SpeechConfig {
	return SpeechConfig{
		BaseURL:          baseURL,
		APIKey:           "key",
		PollBase:         time.Millisecond,
		PollCap:          5 * time.Millisecond,
		PollMaxAttempts:  10,
		RatePerMinuteUSD: 0.18,
	}
}

func TestEstimateCostUSD(t *testing.T) {
	t.Parallel()

	c := NewSpeechClient(speechTestConfig("http://unused"))
	tests := []struct {
		durationSec int
		want        float64
	}{
		{60, 0.18},
		{61, 0.36}, // partial minutes bill as whole minutes
		{1800, 5.40},
		{0, 0},
	}
	for _, tt := range tests {
		if got := c.EstimateCostUSD(tt.durationSec); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EstimateCostUSD(%d) = %v, want %v", tt.durationSec, got, tt.want)
		}
	}
}

func TestTranscribeCompletes(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"id":"job1","status":"queued"}`)
			return
		}
		if polls.Add(1) < 3 {
			fmt.Fprint(w, `{"id":"job1","status":"processing"}`)
			return
		}
		fmt.Fprint(w, `{"id":"job1","status":"completed","text":"hello world","language_code":"en","audio_duration_sec":120}`)
	}))
	defer srv.Close()

	c := NewSpeechClient(speechTestConfig(srv.URL))
	video := &models.Video{VideoID: "yt_abc", DurationSec: 130}
	result, err := c.Transcribe(context.Background(), video)
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if result.Text != "hello world" || result.Language != "en" {
		t.Errorf("result = %+v", result)
	}
	if result.AudioDurationSec != 120 {
		t.Errorf("duration = %d, want provider-reported 120", result.AudioDurationSec)
	}
	if math.Abs(result.CostUSD-0.36) > 1e-9 {
		t.Errorf("cost = %v, want 2 minutes at 0.18", result.CostUSD)
	}
}

func TestTranscribePollExhaustion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"id":"job1","status":"queued"}`)
			return
		}
		fmt.Fprint(w, `{"id":"job1","status":"processing"}`)
	}))
	defer srv.Close()

	c := NewSpeechClient(speechTestConfig(srv.URL))
	_, err := c.Transcribe(context.Background(), &models.Video{VideoID: "yt_abc", DurationSec: 60})
	if err == nil {
		t.Fatal("Transcribe() = nil error, want poll exhaustion")
	}
	var ce *models.ClassifiedError
	if !errors.As(err, &ce) || ce.ErrorType != models.ErrTypeTimeout {
		t.Errorf("error = %v, want transient timeout", err)
	}
}

func TestTranscribeJobErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		jobErr   string
		wantKind models.ErrorKind
		wantType string
	}{
		{"unsupported codec", "unsupported audio codec", models.ErrKindTerminal, models.ErrTypeUnsupportedMedia},
		{"video gone", "unavailable video", models.ErrKindTerminal, models.ErrTypeNotFound},
		{"provider hiccup", "internal worker crash", models.ErrKindTransient, models.ErrTypeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					fmt.Fprint(w, `{"id":"job1","status":"queued"}`)
					return
				}
				fmt.Fprintf(w, `{"id":"job1","status":"error","error":%q}`, tt.jobErr)
			}))
			defer srv.Close()

			c := NewSpeechClient(speechTestConfig(srv.URL))
			_, err := c.Transcribe(context.Background(), &models.Video{VideoID: "yt_abc", DurationSec: 60})
			if err == nil {
				t.Fatal("Transcribe() = nil error")
			}
			var ce *models.ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("error %v is not classified", err)
			}
			if ce.Kind != tt.wantKind || ce.ErrorType != tt.wantType {
				t.Errorf("classification = %s/%s, want %s/%s", ce.Kind, ce.ErrorType, tt.wantKind, tt.wantType)
			}
		})
	}
}

func TestTranscribeCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"id":"job1","status":"queued"}`)
			return
		}
		fmt.Fprint(w, `{"id":"job1","status":"processing"}`)
	}))
	defer srv.Close()

	cfg := speechTestConfig(srv.URL)
	cfg.PollBase = 50 * time.Millisecond
	c := NewSpeechClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Transcribe(ctx, &models.Video{VideoID: "yt_abc", DurationSec: 60})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
