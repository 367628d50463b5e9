// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package alerting

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"
)

const defaultPostTimeout = 10 * time.Second

// SlackClient is a thin wrapper around the slack-go SDK targeting one
// operational channel.
type SlackClient struct {
	api       *goslack.Client
	channelID string
	timeout   time.Duration
}

// NewSlackClient creates a Slack client for the given bot token and channel.
func NewSlackClient(token, channelID string) *SlackClient {
	return &SlackClient{
		api:       goslack.New(token),
		channelID: channelID,
		timeout:   defaultPostTimeout,
	}
}

// NewSlackClientWithAPIURL targets a custom API URL. Used by tests against
// a mock server.
func NewSlackClientWithAPIURL(token, channelID, apiURL string) *SlackClient {
	return &SlackClient{
		api:       goslack.New(token, goslack.OptionAPIURL(apiURL)),
		channelID: channelID,
		timeout:   defaultPostTimeout,
	}
}

// Post sends a message to the configured channel. The fallback text shows
// in notifications and clients that do not render blocks.
func (c *SlackClient) Post(ctx context.Context, fallback string, blocks ...goslack.Block) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []goslack.MsgOption{
		goslack.MsgOptionText(fallback, false),
	}
	if len(blocks) > 0 {
		opts = append(opts, goslack.MsgOptionBlocks(blocks...))
	}

	if _, _, err := c.api.PostMessageContext(ctx, c.channelID, opts...); err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}
