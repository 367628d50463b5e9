// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/scriptorium/internal/validation"
)

// ErrMissingCredential marks a required credential that is absent while the
// owning feature is enabled. The CLI maps it to exit code 2.
var ErrMissingCredential = errors.New("missing required credential")

// Validate checks structural constraints (tags) and the cross-field rules
// the tags cannot express: timezone resolution, credential presence for
// enabled features, and chunking overlap bounds.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}

	if c.Chunking.OverlapTokens >= c.Chunking.MaxTokensPerChunk {
		return fmt.Errorf("chunking.overlap_tokens (%d) must be smaller than chunking.max_tokens_per_chunk (%d)",
			c.Chunking.OverlapTokens, c.Chunking.MaxTokensPerChunk)
	}

	if c.Routing.Mode == "forced" && len(c.Routing.ForcedSources) == 0 {
		return errors.New("routing.mode is forced but routing.forced_sources is empty")
	}

	return c.validateCredentials()
}

// validateCredentials enforces required secrets for every enabled feature.
// Providers without a base URL are treated as disabled collaborators; this
// keeps tests and partial deployments bootable.
func (c *Config) validateCredentials() error {
	if c.Providers.Listing.BaseURL != "" && c.Providers.Listing.APIKey == "" {
		return fmt.Errorf("%w: providers.listing.api_key", ErrMissingCredential)
	}
	if c.Providers.Speech.BaseURL != "" && c.Providers.Speech.APIKey == "" {
		return fmt.Errorf("%w: providers.speech.api_key", ErrMissingCredential)
	}
	if c.Providers.LLM.BaseURL != "" && c.Providers.LLM.APIKey == "" {
		return fmt.Errorf("%w: providers.llm.api_key", ErrMissingCredential)
	}
	if c.Providers.Embedding.BaseURL != "" && c.Providers.Embedding.APIKey == "" {
		return fmt.Errorf("%w: providers.embedding.api_key", ErrMissingCredential)
	}

	if c.Alerts.Enabled {
		if c.Alerts.SlackToken == "" {
			return fmt.Errorf("%w: alerts.slack_token", ErrMissingCredential)
		}
		if c.Alerts.SlackChannel == "" {
			return fmt.Errorf("%w: alerts.slack_channel", ErrMissingCredential)
		}
	}

	if c.Security.AuthMode == "token" && c.Security.APITokenHash == "" {
		return fmt.Errorf("%w: security.api_token_hash", ErrMissingCredential)
	}

	return nil
}
