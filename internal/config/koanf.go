// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file search order. The first file
// found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/scriptorium/config.yaml",
	"/etc/scriptorium/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They are loaded first and
// overridden by the config file, then by environment variables.
func defaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Timezone:             "Europe/Amsterdam",
			DailyRunHour:         6,
			DailyLimitPerChannel: 10,
			WindowDays:           7,
			CheckInterval:        time.Minute,
		},
		Budgets: BudgetsConfig{
			TranscriptionDailyUSD: 5.00,
		},
		Quotas: QuotasConfig{
			YouTubeDailyUnits: 10000,
		},
		Idempotency: IdempotencyConfig{
			MaxVideoDurationSec: 4200,
		},
		Retries: RetriesConfig{
			MaxAttempts: 3,
		},
		Pipeline: PipelineConfig{
			Concurrency: ConcurrencyConfig{
				Scrape:     1,
				Transcribe: 3,
				Summarize:  3,
				Index:      5,
			},
			CancelGrace: 30 * time.Second,
		},
		Chunking: ChunkingConfig{
			MaxTokensPerChunk: 1000,
			OverlapTokens:     100,
			Encoding:          "cl100k_base",
		},
		Index: IndexConfig{
			StrictAllSinks: false,
		},
		Retrieval: RetrievalConfig{
			TopK:               10,
			PerSourceTimeoutMS: 1500,
			RRFK:               60,
			WeightedFusion: WeightsConfig{
				Enabled:    false,
				Semantic:   0.5,
				Keyword:    0.3,
				Structured: 0.2,
			},
		},
		Routing: RoutingConfig{
			Mode: "adaptive",
		},
		Policy: PolicyConfig{
			Mode: "filter",
		},
		Providers: ProvidersConfig{
			Listing: ListingConfig{
				Timeout: 30 * time.Second,
			},
			Sheet: SheetConfig{
				Enabled: false,
				Timeout: 30 * time.Second,
			},
			Speech: SpeechConfig{
				Timeout:          60 * time.Second,
				PollBase:         5 * time.Second,
				PollCap:          30 * time.Second,
				PollMaxAttempts:  60,
				RatePerMinuteUSD: 0.18,
			},
			LLM: LLMConfig{
				Model:           "gpt-4o-mini",
				MaxOutputTokens: 2048,
				PromptID:        "summary-v2",
				Timeout:         120 * time.Second,
			},
			Embedding: EmbeddingConfig{
				Model:      "text-embedding-3-small",
				Dimensions: 1536,
				Timeout:    30 * time.Second,
				CacheSize:  1024,
			},
		},
		Storage: StorageConfig{
			MetadataPath:  "/data/metadata",
			BlobDir:       "/data/artifacts",
			WarehousePath: "/data/warehouse.duckdb",
			SemanticPath:  "/data/semantic.duckdb",
			KeywordPath:   "/data/keyword.duckdb",
		},
		NATS: NATSConfig{
			Enabled:             false,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			StreamRetentionDays: 7,
			DurableName:         "scriptorium-events",
			RouterRetryCount:    3,
			PoisonTopic:         "pipeline.poison",
			CloseTimeout:        30 * time.Second,
		},
		Alerts: AlertsConfig{
			Enabled: false,
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8380,
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        "none",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load resolves configuration with layered sources: struct defaults, then
// an optional YAML file, then environment variables. The result is
// validated; a validation failure maps to exit code 2 at the CLI boundary.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, honoring the
// CONFIG_PATH override.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the paths parsed as comma-separated slices when
// supplied through the environment.
var sliceConfigPaths = []string{
	"routing.forced_sources",
	"policy.allowed_channels",
	"policy.sensitive_patterns",
	"security.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices for
// the known slice paths. YAML-sourced slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransform maps environment variable names to koanf config paths.
// Unmapped variables are dropped so the ambient environment cannot pollute
// the config tree.
func envTransform(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Scheduler
		"scheduler_timezone":       "scheduler.timezone",
		"scheduler_daily_run_hour": "scheduler.daily_run_hour",
		"scheduler_daily_limit":    "scheduler.daily_limit_per_channel",
		"scheduler_window_days":    "scheduler.window_days",
		"scheduler_check_interval": "scheduler.check_interval",

		// Budgets, quotas, idempotency, retries
		"transcription_daily_usd": "budgets.transcription_daily_usd",
		"youtube_daily_units":     "quotas.youtube_daily_units",
		"max_video_duration_sec":  "idempotency.max_video_duration_sec",
		"retry_max_attempts":      "retries.max_attempts",

		// Pipeline concurrency
		"pipeline_scrape_concurrency":     "pipeline.concurrency.scrape",
		"pipeline_transcribe_concurrency": "pipeline.concurrency.transcribe",
		"pipeline_summarize_concurrency":  "pipeline.concurrency.summarize",
		"pipeline_index_concurrency":      "pipeline.concurrency.index",
		"pipeline_cancel_grace":           "pipeline.cancel_grace",

		// Chunking and index strictness
		"chunking_max_tokens":     "chunking.max_tokens_per_chunk",
		"chunking_overlap_tokens": "chunking.overlap_tokens",
		"chunking_encoding":       "chunking.encoding",
		"index_strict_all_sinks":  "index.strict_all_sinks",

		// Retrieval and routing
		"retrieval_top_k":                 "retrieval.top_k",
		"retrieval_per_source_timeout_ms": "retrieval.per_source_timeout_ms",
		"retrieval_rrf_k":                 "retrieval.rrf_k",
		"retrieval_weighted_enabled":      "retrieval.weighted_fusion.enabled",
		"retrieval_weight_semantic":       "retrieval.weighted_fusion.semantic",
		"retrieval_weight_keyword":        "retrieval.weighted_fusion.keyword",
		"retrieval_weight_structured":     "retrieval.weighted_fusion.structured",
		"routing_mode":                    "routing.mode",
		"routing_forced_sources":          "routing.forced_sources",

		// Policy
		"policy_allowed_channels":   "policy.allowed_channels",
		"policy_max_age_days":       "policy.max_age_days",
		"policy_mode":               "policy.mode",
		"policy_sensitive_patterns": "policy.sensitive_patterns",

		// Providers
		"listing_base_url":       "providers.listing.base_url",
		"listing_api_key":        "providers.listing.api_key",
		"listing_channel_handle": "providers.listing.channel_handle",
		"listing_timeout":        "providers.listing.timeout",
		"sheet_enabled":          "providers.sheet.enabled",
		"sheet_url":              "providers.sheet.url",
		"speech_base_url":        "providers.speech.base_url",
		"speech_api_key":         "providers.speech.api_key",
		"speech_rate_per_minute": "providers.speech.rate_per_minute_usd",
		"llm_base_url":           "providers.llm.base_url",
		"llm_api_key":            "providers.llm.api_key",
		"llm_model":              "providers.llm.model",
		"llm_max_output_tokens":  "providers.llm.max_output_tokens",
		"llm_prompt_id":          "providers.llm.prompt_id",
		"embedding_base_url":     "providers.embedding.base_url",
		"embedding_api_key":      "providers.embedding.api_key",
		"embedding_model":        "providers.embedding.model",
		"embedding_dimensions":   "providers.embedding.dimensions",

		// Storage
		"metadata_path":  "storage.metadata_path",
		"blob_dir":       "storage.blob_dir",
		"warehouse_path": "storage.warehouse_path",
		"semantic_path":  "storage.semantic_path",
		"keyword_path":   "storage.keyword_path",

		// NATS
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded",
		"nats_store_dir":      "nats.store_dir",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_durable_name":   "nats.durable_name",
		"nats_retry_count":    "nats.router_retry_count",
		"nats_poison_topic":   "nats.poison_topic",

		// Alerts
		"alerts_enabled": "alerts.enabled",
		"slack_token":    "alerts.slack_token",
		"slack_channel":  "alerts.slack_channel",
		"alerts_timeout": "alerts.webhook_timeout",

		// Server and security
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"auth_mode":           "security.auth_mode",
		"api_token_hash":      "security.api_token_hash",
		"jwt_secret":          "security.jwt_secret",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"cors_origins":        "security.cors_origins",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
