// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Reader     ReaderConfig     `mapstructure:"reader"`
	Direct     DirectConfig     `mapstructure:"direct"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	DB         DBConfig         `mapstructure:"db"`
	Freshness  FreshnessConfig  `mapstructure:"freshness"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int `mapstructure:"port"`
	RequestTimeoutSec int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig selects the zap logger flavor.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ReaderConfig configures the external markdown reader service.
type ReaderConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DirectConfig configures the direct HTML fetch leg.
type DirectConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// ProviderConfig describes one LLM provider endpoint.
type ProviderConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// LLMConfig holds the ordered extraction providers.
type LLMConfig struct {
	Primary     ProviderConfig `mapstructure:"primary"`
	Secondary   ProviderConfig `mapstructure:"secondary"`
	Temperature float64        `mapstructure:"temperature"`
	MaxTokens   int            `mapstructure:"max_tokens"`
}

// EmbeddingConfig configures embedding generation.
type EmbeddingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	Dim      int    `mapstructure:"dim"`
}

// DBConfig controls access to Postgres. An empty driver selects the
// in-memory store.
type DBConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// FreshnessConfig bounds how often an entity may be re-enriched.
type FreshnessConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// SimilarityConfig sets similarity ranking defaults.
type SimilarityConfig struct {
	Threshold float64 `mapstructure:"threshold"`
	Limit     int     `mapstructure:"limit"`
}

// RateLimitConfig bounds outbound provider call rates.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// ArchiveConfig selects the snapshot blob store backend.
type ArchiveConfig struct {
	// Backend is one of "", "memory", "local", "gcs". Empty disables
	// snapshot archival.
	Backend   string `mapstructure:"backend"`
	Prefix    string `mapstructure:"prefix"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds metadata for completion event publishing.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENRICHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("reader.timeout_seconds", 20)
	v.SetDefault("direct.enabled", true)
	v.SetDefault("direct.timeout_seconds", 15)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("llm.primary.model", "gpt-4o-mini")
	v.SetDefault("llm.secondary.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("embedding.enabled", true)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dim", 1536)
	v.SetDefault("db.table", "entities")
	v.SetDefault("freshness.interval_minutes", 60)
	v.SetDefault("similarity.threshold", 0.5)
	v.SetDefault("similarity.limit", 5)
	v.SetDefault("rate_limit.rps", 2)
	v.SetDefault("rate_limit.burst", 4)
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("pubsub.topic_name", "enrichment-completed")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.LLM.Primary.APIKey == "" && c.LLM.Secondary.APIKey == "" {
		return fmt.Errorf("at least one of llm.primary.api_key or llm.secondary.api_key is required")
	}
	if c.DB.Driver == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.driver is postgres")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Similarity.Threshold < -1 || c.Similarity.Threshold >= 1 {
		return fmt.Errorf("similarity.threshold must be in [-1, 1)")
	}
	if c.Similarity.Limit <= 0 {
		return fmt.Errorf("similarity.limit must be > 0")
	}
	if c.Freshness.IntervalMinutes <= 0 {
		return fmt.Errorf("freshness.interval_minutes must be > 0")
	}
	switch c.Archive.Backend {
	case "", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown archive.backend %q", c.Archive.Backend)
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub is enabled")
	}
	return nil
}

// FreshnessInterval returns the freshness gate duration.
func (c Config) FreshnessInterval() time.Duration {
	return time.Duration(c.Freshness.IntervalMinutes) * time.Minute
}

// RequestTimeout returns the HTTP request deadline.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}
