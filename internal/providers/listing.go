// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
)

// listPageUnits is the quota cost of one listing page request.
const listPageUnits = 100

// Lister discovers recently published videos for a channel.
type Lister interface {
	// ListRecent returns videos published at or after since, newest first,
	// capped at limit, together with the quota units the calls consumed.
	ListRecent(ctx context.Context, since time.Time, limit int) ([]models.Video, float64, error)
}

// ListingConfig configures the channel listing client.
type ListingConfig struct {
	BaseURL       string
	APIKey        string
	ChannelHandle string
	Timeout       time.Duration
}

// ListingClient talks to the video listing API. Requests are paced to one
// page per second so discovery cannot burn the daily quota in a burst, and
// the breaker keeps a dead provider from stalling the scrape stage.
type ListingClient struct {
	cfg        ListingConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[*listPage]
}

var _ Lister = (*ListingClient)(nil)

// listPage is one page of the listing response.
type listPage struct {
	Items []struct {
		VideoID     string    `json:"video_id"`
		ChannelID   string    `json:"channel_id"`
		Title       string    `json:"title"`
		PublishedAt time.Time `json:"published_at"`
		DurationSec int       `json:"duration_sec"`
	} `json:"items"`
	NextPageToken string `json:"next_page_token"`
}

// NewListingClient builds the listing client.
func NewListingClient(cfg ListingConfig) *ListingClient {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ListingClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		cb:         newBreaker[*listPage]("listing"),
	}
}

// ListRecent pages through the channel's uploads until the publish window
// or the limit is exhausted.
func (c *ListingClient) ListRecent(ctx context.Context, since time.Time, limit int) ([]models.Video, float64, error) {
	var (
		videos    []models.Video
		units     float64
		pageToken string
	)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return videos, units, err
		}

		start := time.Now()
		page, err := c.cb.Execute(func() (*listPage, error) {
			return c.fetchPage(ctx, pageToken)
		})
		if err != nil {
			metrics.RecordProviderRequest("listing", "failure", time.Since(start))
			return videos, units, fmt.Errorf("list channel %s: %w", c.cfg.ChannelHandle, breakerErr(err))
		}
		metrics.RecordProviderRequest("listing", "success", time.Since(start))
		units += listPageUnits

		done := false
		for _, item := range page.Items {
			if item.PublishedAt.Before(since) {
				done = true
				break
			}
			videos = append(videos, models.Video{
				VideoID:     item.VideoID,
				ChannelID:   item.ChannelID,
				Title:       item.Title,
				PublishedAt: item.PublishedAt,
				DurationSec: item.DurationSec,
				Source:      models.SourceChannelScrape,
			})
			if limit > 0 && len(videos) >= limit {
				done = true
				break
			}
		}

		if done || page.NextPageToken == "" {
			return videos, units, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *ListingClient) fetchPage(ctx context.Context, pageToken string) (*listPage, error) {
	q := url.Values{}
	q.Set("channel", c.cfg.ChannelHandle)
	q.Set("order", "published_desc")
	q.Set("max_results", strconv.Itoa(50))
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}

	endpoint := fmt.Sprintf("%s/v1/channel/uploads?%s", c.cfg.BaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.NewTerminal(models.ErrTypeInvalidInput, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("listing", resp)
	}

	var page listPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, models.NewTransient(models.ErrTypeInternal, fmt.Errorf("decode listing page: %w", err))
	}
	return &page, nil
}
