// Package config holds the application configuration, loaded from a YAML
// file, environment variables (AGENTDB_ prefix), and defaults via viper.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root of the application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Warehouse WarehouseConfig `mapstructure:"warehouse" yaml:"warehouse"`
	Journal   JournalConfig   `mapstructure:"journal" yaml:"journal"`
	Autopilot AutopilotConfig `mapstructure:"autopilot" yaml:"autopilot"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// StoreConfig configures the pattern store and its vector index.
type StoreConfig struct {
	// DataDir is where the two on-disk artifacts live. Empty means
	// ~/.agentdb; see ResolveDataDir.
	DataDir  string      `mapstructure:"data_dir" yaml:"data_dir"`
	Capacity int         `mapstructure:"capacity" yaml:"capacity"`
	Index    IndexConfig `mapstructure:"index" yaml:"index"`
}

// IndexConfig exposes the HNSW tunables.
type IndexConfig struct {
	M        int     `mapstructure:"m" yaml:"m"`
	EfSearch int     `mapstructure:"ef_search" yaml:"ef_search"`
	Ml       float64 `mapstructure:"ml" yaml:"ml"`
}

// WarehouseConfig configures the optional Postgres mirror used for
// fleet-wide analytics. The store core never touches it.
type WarehouseConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"-"`
}

// JournalConfig configures the JSONL action-log ingest.
type JournalConfig struct {
	// Path is the journal file written by out-of-process automation
	// engines.
	Path string `mapstructure:"path" yaml:"path"`
	// FromStart replays the whole journal instead of only new lines.
	FromStart bool `mapstructure:"from_start" yaml:"from_start"`
}

// AutopilotConfig tunes the browser replay collaborator.
type AutopilotConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// ActionsPerSecond paces replayed actions so suggestion replay never
	// hammers a target site.
	ActionsPerSecond float64 `mapstructure:"actions_per_second" yaml:"actions_per_second"`
	// MinSimilarity is the floor below which suggestions are ignored and
	// the caller's own fallback heuristics take over.
	MinSimilarity float64 `mapstructure:"min_similarity" yaml:"min_similarity"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "agentdb")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Store --
	v.SetDefault("store.data_dir", "")
	v.SetDefault("store.capacity", 10000)
	v.SetDefault("store.index.m", 16)
	v.SetDefault("store.index.ef_search", 100)
	v.SetDefault("store.index.ml", 0.25)

	// -- Warehouse --
	v.SetDefault("warehouse.enabled", false)

	// -- Journal --
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.from_start", false)

	// -- Autopilot --
	v.SetDefault("autopilot.headless", true)
	v.SetDefault("autopilot.navigation_timeout", "30s")
	v.SetDefault("autopilot.action_timeout", "10s")
	v.SetDefault("autopilot.actions_per_second", 2.0)
	v.SetDefault("autopilot.min_similarity", 0.5)
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	_ = v.BindEnv("warehouse.url", "AGENTDB_WAREHOUSE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Store.Capacity <= 0 {
		return fmt.Errorf("store.capacity must be a positive integer")
	}
	if c.Store.Index.M < 0 || c.Store.Index.EfSearch < 0 || c.Store.Index.Ml < 0 {
		return fmt.Errorf("store.index parameters must not be negative")
	}
	if c.Warehouse.Enabled && c.Warehouse.URL == "" {
		return fmt.Errorf("warehouse is enabled but no URL is set; export AGENTDB_WAREHOUSE_URL")
	}
	if c.Autopilot.ActionsPerSecond <= 0 {
		return fmt.Errorf("autopilot.actions_per_second must be positive")
	}
	if c.Autopilot.MinSimilarity < 0 || c.Autopilot.MinSimilarity > 1 {
		return fmt.Errorf("autopilot.min_similarity must be within [0, 1]")
	}
	return nil
}

// ResolveDataDir expands the configured data directory, defaulting to
// ~/.agentdb when unset.
func (c *Config) ResolveDataDir() (string, error) {
	dir := c.Store.DataDir
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, ".agentdb"), nil
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("failed to expand data directory %q: %w", dir, err)
	}
	return expanded, nil
}
