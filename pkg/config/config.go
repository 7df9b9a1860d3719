// Package config loads the module configuration from file and
// environment. Configuration lives in a recall.yaml found in the working
// directory or under ~/.recall, and every key can be overridden with a
// RECALL_-prefixed environment variable (RECALL_SERVER_PORT, and so on).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/soundprediction/recall/pkg/index"
	"github.com/soundprediction/recall/pkg/quality"
	"github.com/soundprediction/recall/pkg/search"
)

// Config holds all configuration for the module.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration for the HTTP API
	Server ServerConfig `mapstructure:"server"`

	// Store configuration for the record and relation store
	Store StoreConfig `mapstructure:"store"`

	// Index configuration for the search providers
	Index IndexConfig `mapstructure:"index"`

	// Search pipeline tunables
	Search search.EngineConfig `mapstructure:"search"`

	// Expansion configures query expansion
	Expansion ExpansionConfig `mapstructure:"expansion"`

	// Quality assessment tunables
	Quality quality.Config `mapstructure:"quality"`

	// Retention policy
	Retention RetentionConfig `mapstructure:"retention"`

	// Backup configuration
	Backup BackupConfig `mapstructure:"backup"`

	// Embedding configures the vector backend for the semantic index
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// EmbeddingConfig holds embedding backend configuration
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // openai, ollama, compat
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string `mapstructure:"level"`
	NoColor bool   `mapstructure:"no_color"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// StoreConfig holds record store configuration
type StoreConfig struct {
	// Backend selects the storage engine: badger or memory.
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// IndexConfig holds search provider configuration
type IndexConfig struct {
	// LexicalPath is the SQLite FTS database file. Empty means a file
	// next to the store path.
	LexicalPath string `mapstructure:"lexical_path"`

	// SemanticPath is the embedding database directory. Empty keeps the
	// semantic index in memory.
	SemanticPath string `mapstructure:"semantic_path"`

	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig holds circuit breaker configuration for the providers
type BreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	IntervalSeconds  int     `mapstructure:"interval"` // in seconds
	TimeoutSeconds   int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Settings converts the decoded form into the provider settings.
func (b BreakerConfig) Settings() index.BreakerSettings {
	return index.BreakerSettings{
		MaxRequests:      b.MaxRequests,
		Interval:         time.Duration(b.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(b.TimeoutSeconds) * time.Second,
		ReadyToTripRatio: b.ReadyToTripRatio,
	}
}

// ExpansionConfig holds query expansion configuration
type ExpansionConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// SynonymsPath is a YAML file mapping terms to related terms.
	SynonymsPath string `mapstructure:"synonyms_path"`
}

// RetentionConfig holds retention policy configuration
type RetentionConfig struct {
	// ArchiveAfterDays maps a record type to the age in days after which
	// it is archived.
	ArchiveAfterDays map[string]int `mapstructure:"archive_after_days"`
}

// BackupConfig holds snapshot configuration
type BackupConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads recall.yaml and the environment into a Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("recall")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".recall"))
	}

	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.no_color", false)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	dataDir := "./recall_data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".recall", "data")
	}
	v.SetDefault("store.backend", "badger")
	v.SetDefault("store.path", dataDir)

	v.SetDefault("index.lexical_path", "")
	v.SetDefault("index.semantic_path", "")
	v.SetDefault("index.breaker.enabled", true)
	v.SetDefault("index.breaker.max_requests", 2)
	v.SetDefault("index.breaker.interval", 60)
	v.SetDefault("index.breaker.timeout", 30)
	v.SetDefault("index.breaker.ready_to_trip_ratio", 0.6)

	v.SetDefault("search.candidate_limit", 100)
	v.SetDefault("search.merge.strategy", string(search.StrategyLinear))
	v.SetDefault("search.merge.lexical_weight", 0.6)
	v.SetDefault("search.merge.semantic_weight", 0.4)
	v.SetDefault("search.merge.semantic_threshold", 0.2)
	v.SetDefault("search.merge.both_found_boost", 1.2)
	v.SetDefault("search.boost.recency_window", "168h")
	v.SetDefault("search.boost.recency_boost", 1.3)
	v.SetDefault("search.boost.frequency_boost", 1.2)
	v.SetDefault("search.boost.current_file_boost", 1.5)
	v.SetDefault("search.boost.recent_file_boost", 1.2)

	v.SetDefault("expansion.enabled", true)
	v.SetDefault("expansion.synonyms_path", "")

	v.SetDefault("quality.threshold", 0.7)
	v.SetDefault("quality.max_concurrency", 8)
	v.SetDefault("quality.workspace_root", ".")

	v.SetDefault("backup.dir", "")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "")
}
