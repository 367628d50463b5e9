// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package config

import "time"

// Config is the fully resolved application configuration. It is produced
// once at startup by Load and treated as immutable afterwards.
type Config struct {
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Budgets     BudgetsConfig     `koanf:"budgets"`
	Quotas      QuotasConfig      `koanf:"quotas"`
	Idempotency IdempotencyConfig `koanf:"idempotency"`
	Retries     RetriesConfig     `koanf:"retries"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	Index       IndexConfig       `koanf:"index"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Routing     RoutingConfig     `koanf:"routing"`
	Policy      PolicyConfig      `koanf:"policy"`
	Providers   ProvidersConfig   `koanf:"providers"`
	Storage     StorageConfig     `koanf:"storage"`
	NATS        NATSConfig        `koanf:"nats"`
	Alerts      AlertsConfig      `koanf:"alerts"`
	Server      ServerConfig      `koanf:"server"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// SchedulerConfig controls run planning and the daily trigger.
type SchedulerConfig struct {
	// Timezone names the location whose midnight bounds the accounting day.
	Timezone string `koanf:"timezone"`

	// DailyRunHour is the local hour (0-23) of the scheduled daily run.
	DailyRunHour int `koanf:"daily_run_hour" validate:"min=0,max=23"`

	// DailyLimitPerChannel caps discovered videos per source per day.
	DailyLimitPerChannel int `koanf:"daily_limit_per_channel" validate:"min=1"`

	// WindowDays is the discovery lookback window for channel listings.
	WindowDays int `koanf:"window_days" validate:"min=1"`

	// CheckInterval is how often the scheduler checks for a due run.
	CheckInterval time.Duration `koanf:"check_interval"`
}

// BudgetsConfig holds daily spend caps.
type BudgetsConfig struct {
	TranscriptionDailyUSD float64 `koanf:"transcription_daily_usd" validate:"min=0"`
}

// QuotasConfig holds daily quota-unit caps.
type QuotasConfig struct {
	YouTubeDailyUnits float64 `koanf:"youtube_daily_units" validate:"min=0"`
}

// IdempotencyConfig holds discovery hard filters.
type IdempotencyConfig struct {
	MaxVideoDurationSec int `koanf:"max_video_duration_sec" validate:"min=1"`
}

// RetriesConfig holds the dispatcher retry policy.
type RetriesConfig struct {
	MaxAttempts int `koanf:"max_attempts" validate:"min=0"`
}

// PipelineConfig holds per-stage concurrency caps and cancellation grace.
type PipelineConfig struct {
	Concurrency ConcurrencyConfig `koanf:"concurrency"`

	// CancelGrace bounds how long in-flight workers get to settle after a
	// run is cancelled.
	CancelGrace time.Duration `koanf:"cancel_grace"`
}

// ConcurrencyConfig caps simultaneous jobs per stage.
type ConcurrencyConfig struct {
	Scrape     int `koanf:"scrape" validate:"min=1"`
	Transcribe int `koanf:"transcribe" validate:"min=1"`
	Summarize  int `koanf:"summarize" validate:"min=1"`
	Index      int `koanf:"index" validate:"min=1"`
}

// ChunkingConfig controls the token-aware transcript windower.
type ChunkingConfig struct {
	MaxTokensPerChunk int    `koanf:"max_tokens_per_chunk" validate:"min=1"`
	OverlapTokens     int    `koanf:"overlap_tokens" validate:"min=0"`
	Encoding          string `koanf:"encoding"`
}

// IndexConfig controls indexing strictness.
type IndexConfig struct {
	// StrictAllSinks requires every sink write to succeed before a video
	// may transition to indexed. Default lenient: semantic is required,
	// keyword and structured are best-effort.
	StrictAllSinks bool `koanf:"strict_all_sinks"`
}

// RetrievalConfig tunes the fan-out engine.
type RetrievalConfig struct {
	TopK               int           `koanf:"top_k" validate:"min=1,max=100"`
	PerSourceTimeoutMS int           `koanf:"per_source_timeout_ms" validate:"min=1"`
	RRFK               int           `koanf:"rrf_k" validate:"min=1"`
	WeightedFusion     WeightsConfig `koanf:"weighted_fusion"`
}

// PerSourceTimeout returns the per-source deadline as a duration.
func (c RetrievalConfig) PerSourceTimeout() time.Duration {
	return time.Duration(c.PerSourceTimeoutMS) * time.Millisecond
}

// WeightsConfig gates the experimental weighted-sum fusion mode.
type WeightsConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Semantic   float64 `koanf:"semantic"`
	Keyword    float64 `koanf:"keyword"`
	Structured float64 `koanf:"structured"`
}

// RoutingConfig selects the adaptive router mode.
type RoutingConfig struct {
	// Mode is adaptive, always_on, or forced.
	Mode string `koanf:"mode" validate:"oneof=adaptive always_on forced"`

	// ForcedSources pins the selection when Mode is forced.
	ForcedSources []string `koanf:"forced_sources"`
}

// PolicyConfig controls post-retrieval enforcement.
type PolicyConfig struct {
	AllowedChannels []string `koanf:"allowed_channels"`
	MaxAgeDays      int      `koanf:"max_age_days" validate:"min=0"`
	Mode            string   `koanf:"mode" validate:"oneof=filter redact audit_only"`

	// SensitivePatterns adds operator patterns as "<KIND>:<regex>" entries
	// on top of the builtin email and phone detectors.
	SensitivePatterns []string `koanf:"sensitive_patterns"`
}

// ProvidersConfig groups external collaborator endpoints and credentials.
type ProvidersConfig struct {
	Listing   ListingConfig   `koanf:"listing"`
	Sheet     SheetConfig     `koanf:"sheet"`
	Speech    SpeechConfig    `koanf:"speech"`
	LLM       LLMConfig       `koanf:"llm"`
	Embedding EmbeddingConfig `koanf:"embedding"`
}

// ListingConfig configures the video listing provider.
type ListingConfig struct {
	BaseURL       string        `koanf:"base_url"`
	APIKey        string        `koanf:"api_key"`
	ChannelHandle string        `koanf:"channel_handle"`
	Timeout       time.Duration `koanf:"timeout"`
}

// SheetConfig configures the operator backfill spreadsheet.
type SheetConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// SpeechConfig configures the speech-to-text provider.
type SpeechConfig struct {
	BaseURL         string        `koanf:"base_url"`
	APIKey          string        `koanf:"api_key"`
	Timeout         time.Duration `koanf:"timeout"`
	PollBase        time.Duration `koanf:"poll_base"`
	PollCap         time.Duration `koanf:"poll_cap"`
	PollMaxAttempts int           `koanf:"poll_max_attempts" validate:"min=1"`

	// RatePerMinuteUSD prices transcription per audio minute for budget
	// estimation and cost recording.
	RatePerMinuteUSD float64 `koanf:"rate_per_minute_usd" validate:"min=0"`
}

// LLMConfig configures the summarization model endpoint.
type LLMConfig struct {
	BaseURL         string        `koanf:"base_url"`
	APIKey          string        `koanf:"api_key"`
	Model           string        `koanf:"model"`
	MaxOutputTokens int           `koanf:"max_output_tokens" validate:"min=1"`
	PromptID        string        `koanf:"prompt_id"`
	Timeout         time.Duration `koanf:"timeout"`
}

// EmbeddingConfig configures the embedding model endpoint.
type EmbeddingConfig struct {
	BaseURL    string        `koanf:"base_url"`
	APIKey     string        `koanf:"api_key"`
	Model      string        `koanf:"model"`
	Dimensions int           `koanf:"dimensions" validate:"min=1"`
	Timeout    time.Duration `koanf:"timeout"`
	CacheSize  int           `koanf:"cache_size" validate:"min=0"`
}

// StorageConfig holds on-disk locations for every persistence surface.
type StorageConfig struct {
	MetadataPath  string `koanf:"metadata_path"`
	BlobDir       string `koanf:"blob_dir"`
	WarehousePath string `koanf:"warehouse_path"`
	SemanticPath  string `koanf:"semantic_path"`
	KeywordPath   string `koanf:"keyword_path"`
}

// NATSConfig controls the optional JetStream-backed event bus.
type NATSConfig struct {
	Enabled             bool          `koanf:"enabled"`
	URL                 string        `koanf:"url"`
	EmbeddedServer      bool          `koanf:"embedded"`
	StoreDir            string        `koanf:"store_dir"`
	StreamRetentionDays int           `koanf:"stream_retention_days" validate:"min=1"`
	DurableName         string        `koanf:"durable_name"`
	RouterRetryCount    int           `koanf:"router_retry_count" validate:"min=0"`
	PoisonTopic         string        `koanf:"poison_topic"`
	CloseTimeout        time.Duration `koanf:"close_timeout"`
}

// AlertsConfig controls Slack alert delivery.
type AlertsConfig struct {
	Enabled      bool          `koanf:"enabled"`
	SlackToken   string        `koanf:"slack_token"`
	SlackChannel string        `koanf:"slack_channel"`
	Timeout      time.Duration `koanf:"webhook_timeout"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig controls API authentication and rate limiting.
type SecurityConfig struct {
	// AuthMode is none or token. Token mode compares a bearer token
	// against the bcrypt hash in APITokenHash and accepts short-lived
	// HS256 operator JWTs signed with JWTSecret.
	AuthMode        string        `koanf:"auth_mode" validate:"oneof=none token"`
	APITokenHash    string        `koanf:"api_token_hash"`
	JWTSecret       string        `koanf:"jwt_secret"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig controls the zerolog facade.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
