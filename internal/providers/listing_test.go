// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/scriptorium/internal/models"
)

func TestListRecentSinglePage(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("auth header = %q", got)
		}
		fmt.Fprintf(w, `{"items":[
			{"video_id":"v1","channel_id":"UC1","title":"one","published_at":%q,"duration_sec":600},
			{"video_id":"v2","channel_id":"UC1","title":"two","published_at":%q,"duration_sec":900}
		],"next_page_token":""}`,
			now.Format(time.RFC3339), now.Add(-time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	c := NewListingClient(ListingConfig{BaseURL: srv.URL, APIKey: "key123", ChannelHandle: "@chan"})
	videos, units, err := c.ListRecent(context.Background(), now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}
	if units != listPageUnits {
		t.Errorf("units = %v, want %v", units, float64(listPageUnits))
	}
	if videos[0].Source != models.SourceChannelScrape {
		t.Errorf("source = %s", videos[0].Source)
	}
}

func TestListRecentStopsAtWindow(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"items":[
			{"video_id":"fresh","channel_id":"UC1","title":"fresh","published_at":%q,"duration_sec":60},
			{"video_id":"stale","channel_id":"UC1","title":"stale","published_at":%q,"duration_sec":60}
		],"next_page_token":"more"}`,
			now.Format(time.RFC3339), now.Add(-48*time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	c := NewListingClient(ListingConfig{BaseURL: srv.URL, APIKey: "k", ChannelHandle: "@chan"})
	videos, _, err := c.ListRecent(context.Background(), now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(videos) != 1 || videos[0].VideoID != "fresh" {
		t.Errorf("videos = %+v, want only the in-window video", videos)
	}
}

func TestListRecentPaginates(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_token") == "" {
			fmt.Fprintf(w, `{"items":[{"video_id":"p1","channel_id":"UC1","title":"a","published_at":%q,"duration_sec":60}],"next_page_token":"t2"}`,
				now.Format(time.RFC3339))
			return
		}
		fmt.Fprintf(w, `{"items":[{"video_id":"p2","channel_id":"UC1","title":"b","published_at":%q,"duration_sec":60}],"next_page_token":""}`,
			now.Format(time.RFC3339))
	}))
	defer srv.Close()

	c := NewListingClient(ListingConfig{BaseURL: srv.URL, APIKey: "k", ChannelHandle: "@chan"})
	videos, units, err := c.ListRecent(context.Background(), now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(videos) != 2 {
		t.Errorf("got %d videos across pages, want 2", len(videos))
	}
	if units != 2*listPageUnits {
		t.Errorf("units = %v, want two pages worth", units)
	}
}

func TestListRecentHonorsLimit(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"items":[
			{"video_id":"a","channel_id":"UC1","title":"a","published_at":%q,"duration_sec":60},
			{"video_id":"b","channel_id":"UC1","title":"b","published_at":%q,"duration_sec":60},
			{"video_id":"c","channel_id":"UC1","title":"c","published_at":%q,"duration_sec":60}
		],"next_page_token":"t"}`,
			now.Format(time.RFC3339), now.Format(time.RFC3339), now.Format(time.RFC3339))
	}))
	defer srv.Close()

	c := NewListingClient(ListingConfig{BaseURL: srv.URL, APIKey: "k", ChannelHandle: "@chan"})
	videos, _, err := c.ListRecent(context.Background(), now.Add(-time.Hour), 2)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(videos) != 2 {
		t.Errorf("got %d videos, want limit 2", len(videos))
	}
}

func TestListRecentErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		wantKind models.ErrorKind
		wantType string
	}{
		{"unauthorized", http.StatusUnauthorized, models.ErrKindTerminal, models.ErrTypeAuth},
		{"rate limited", http.StatusTooManyRequests, models.ErrKindTransient, models.ErrTypeRateLimit},
		{"server error", http.StatusBadGateway, models.ErrKindTransient, models.ErrTypeServiceUnavailable},
		{"bad request", http.StatusBadRequest, models.ErrKindTerminal, models.ErrTypeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewListingClient(ListingConfig{BaseURL: srv.URL, APIKey: "k", ChannelHandle: "@chan"})
			_, _, err := c.ListRecent(context.Background(), time.Now().Add(-time.Hour), 5)
			if err == nil {
				t.Fatal("ListRecent() = nil error")
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
