// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Scheduler.Timezone != "Europe/Amsterdam" {
		t.Errorf("timezone = %s, want Europe/Amsterdam", cfg.Scheduler.Timezone)
	}
	if cfg.Scheduler.DailyLimitPerChannel != 10 {
		t.Errorf("daily limit = %d, want 10", cfg.Scheduler.DailyLimitPerChannel)
	}
	if cfg.Budgets.TranscriptionDailyUSD != 5.00 {
		t.Errorf("budget = %v, want 5.00", cfg.Budgets.TranscriptionDailyUSD)
	}
	if cfg.Idempotency.MaxVideoDurationSec != 4200 {
		t.Errorf("max duration = %d, want 4200", cfg.Idempotency.MaxVideoDurationSec)
	}
	if cfg.Retries.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Retries.MaxAttempts)
	}
	if cfg.Retrieval.TopK != 10 || cfg.Retrieval.RRFK != 60 {
		t.Errorf("retrieval defaults = %d/%d, want 10/60", cfg.Retrieval.TopK, cfg.Retrieval.RRFK)
	}
	if cfg.Retrieval.PerSourceTimeout() != 1500*time.Millisecond {
		t.Errorf("per-source timeout = %v, want 1.5s", cfg.Retrieval.PerSourceTimeout())
	}
	if cfg.Chunking.MaxTokensPerChunk != 1000 || cfg.Chunking.OverlapTokens != 100 {
		t.Errorf("chunking defaults = %d/%d, want 1000/100",
			cfg.Chunking.MaxTokensPerChunk, cfg.Chunking.OverlapTokens)
	}
	if cfg.Index.StrictAllSinks {
		t.Error("strict_all_sinks should default to lenient")
	}
	cc := cfg.Pipeline.Concurrency
	if cc.Scrape != 1 || cc.Transcribe != 3 || cc.Summarize != 3 || cc.Index != 5 {
		t.Errorf("concurrency = %+v, want 1/3/3/5", cc)
	}
}

func TestDefaultsValidate(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"overlap >= chunk", func(c *Config) { c.Chunking.OverlapTokens = 1000 }},
		{"top_k over cap", func(c *Config) { c.Retrieval.TopK = 500 }},
		{"bad routing mode", func(c *Config) { c.Routing.Mode = "random" }},
		{"forced without sources", func(c *Config) { c.Routing.Mode = "forced" }},
		{"bad policy mode", func(c *Config) { c.Policy.Mode = "obliterate" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"listing key", func(c *Config) { c.Providers.Listing.BaseURL = "https://yt.example" }},
		{"speech key", func(c *Config) { c.Providers.Speech.BaseURL = "https://stt.example" }},
		{"llm key", func(c *Config) { c.Providers.LLM.BaseURL = "https://llm.example" }},
		{"slack token", func(c *Config) { c.Alerts.Enabled = true; c.Alerts.SlackChannel = "#ops" }},
		{"token hash", func(c *Config) { c.Security.AuthMode = "token" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrMissingCredential) {
				t.Errorf("Validate() = %v, want ErrMissingCredential", err)
			}
		})
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
scheduler:
  daily_limit_per_channel: 25
retrieval:
  top_k: 15
policy:
  mode: redact
  allowed_channels:
    - UCa
    - UCb
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Scheduler.DailyLimitPerChannel != 25 {
		t.Errorf("daily limit = %d, want 25 from file", cfg.Scheduler.DailyLimitPerChannel)
	}
	if cfg.Retrieval.TopK != 15 {
		t.Errorf("top_k = %d, want 15 from file", cfg.Retrieval.TopK)
	}
	if cfg.Policy.Mode != "redact" {
		t.Errorf("policy mode = %s, want redact", cfg.Policy.Mode)
	}
	if len(cfg.Policy.AllowedChannels) != 2 {
		t.Errorf("allowed channels = %v, want 2 entries", cfg.Policy.AllowedChannels)
	}
	// Untouched keys keep their defaults.
	if cfg.Retrieval.RRFK != 60 {
		t.Errorf("rrf_k = %d, want default 60", cfg.Retrieval.RRFK)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  top_k: 15\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("RETRIEVAL_TOP_K", "20")
	t.Setenv("POLICY_ALLOWED_CHANNELS", "UCa, UCb ,UCc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Retrieval.TopK != 20 {
		t.Errorf("top_k = %d, want env override 20", cfg.Retrieval.TopK)
	}
	if len(cfg.Policy.AllowedChannels) != 3 {
		t.Errorf("allowed channels = %v, want comma-split 3", cfg.Policy.AllowedChannels)
	}
}

func TestUnmappedEnvIgnored(t *testing.T) {
	if got := envTransform("HOME"); got != "" {
		t.Errorf("envTransform(HOME) = %q, want dropped", got)
	}
	if got := envTransform("RETRIEVAL_TOP_K"); got != "retrieval.top_k" {
		t.Errorf("envTransform(RETRIEVAL_TOP_K) = %q", got)
	}
}
