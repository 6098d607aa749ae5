// Package config loads and hot-reloads the three configuration blocks that
// drive the browser core: pool sizing, session store selection, and action
// executor limits.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PoolConfig sizes and tunes the browser pool.
type PoolConfig struct {
	MinBrowsers          int           `yaml:"min_browsers"`
	MaxBrowsers          int           `yaml:"max_browsers"`
	MaxPagesPerBrowser   int           `yaml:"max_pages_per_browser"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	AcquisitionTimeout   time.Duration `yaml:"acquisition_timeout"`
	HealthCheckInterval  time.Duration `yaml:"health_check_interval"`
	IdleEvictionInterval time.Duration `yaml:"idle_eviction_interval"`
	RecycleCheckInterval time.Duration `yaml:"recycle_check_interval"`
	MaxBrowserAge        time.Duration `yaml:"max_browser_age"`
	MaxBrowserUses       int           `yaml:"max_browser_uses"`
	MaxBrowserErrors     int           `yaml:"max_browser_errors"`
	LaunchArgs           []string      `yaml:"launch_args"`
	Headless             bool          `yaml:"headless"`
}

// MonitoringConfig controls the store monitor's probe cadence and alerting
// thresholds.
type MonitoringConfig struct {
	Interval             time.Duration `yaml:"interval"`
	LatencyWarnThreshold time.Duration `yaml:"latency_warn_threshold"`
	ErrorRateThreshold   float64       `yaml:"error_rate_threshold"`
}

// ReplicationConfig controls async replication to secondary store backends.
type ReplicationConfig struct {
	Mode               string        `yaml:"mode"`
	SyncInterval       time.Duration `yaml:"sync_interval"`
	BatchSize          int           `yaml:"batch_size"`
	ConflictResolution string        `yaml:"conflict_resolution"`
	SyncDeletions      bool          `yaml:"sync_deletions"`
	SyncExpired        bool          `yaml:"sync_expired"`
}

// MigrationConfig controls online migration between store backends.
type MigrationConfig struct {
	Enabled   bool `yaml:"enabled"`
	BatchSize int  `yaml:"batch_size"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	Type        string            `yaml:"type"` // redis | memory | auto
	URL         string            `yaml:"url"`
	Prefix      string            `yaml:"prefix"`
	MaxRetries  int               `yaml:"max_retries"`
	RetryDelay  time.Duration     `yaml:"retry_delay"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Replication ReplicationConfig `yaml:"replication"`
	Migration   MigrationConfig   `yaml:"migration"`
}

// TimeoutsConfig carries per-action default deadlines.
type TimeoutsConfig struct {
	Navigate   time.Duration `yaml:"navigate"`
	Evaluate   time.Duration `yaml:"evaluate"`
	Screenshot time.Duration `yaml:"screenshot"`
	Wait       time.Duration `yaml:"wait"`
}

// ExecutorConfig bounds what the action executor and security validator
// allow through.
type ExecutorConfig struct {
	DefaultTimeouts TimeoutsConfig `yaml:"default_timeouts"`
	MaxResultBytes  int            `yaml:"max_result_bytes"`
	MaxArgCount     int            `yaml:"max_arg_count"`
	MaxArgBytes     int            `yaml:"max_arg_bytes"`
	MaxNestingDepth int            `yaml:"max_nesting_depth"`
	DenyPatternsJS  []string       `yaml:"deny_patterns_js"`
	DenyPatternsCSS []string       `yaml:"deny_patterns_css"`
}

// LoggingConfig controls the ambient structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CoreConfig is the top-level configuration document: exactly the three
// blocks the core recognizes, plus the ambient logging block.
type CoreConfig struct {
	Pool     PoolConfig     `yaml:"pool"`
	Store    StoreConfig    `yaml:"store"`
	Executor ExecutorConfig `yaml:"executor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns a CoreConfig populated with sane defaults.
func Default() CoreConfig {
	var c CoreConfig
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills in zero-valued fields with defaults. It is safe to call
// repeatedly and is always invoked after a YAML unmarshal so a partial
// document still yields a fully-populated config.
func (c *CoreConfig) ApplyDefaults() {
	if c.Pool.MinBrowsers <= 0 {
		c.Pool.MinBrowsers = 1
	}
	if c.Pool.MaxBrowsers <= 0 {
		c.Pool.MaxBrowsers = 5
	}
	if c.Pool.MaxBrowsers < c.Pool.MinBrowsers {
		c.Pool.MaxBrowsers = c.Pool.MinBrowsers
	}
	if c.Pool.MaxPagesPerBrowser <= 0 {
		c.Pool.MaxPagesPerBrowser = 10
	}
	if c.Pool.IdleTimeout <= 0 {
		c.Pool.IdleTimeout = 5 * time.Minute
	}
	if c.Pool.AcquisitionTimeout <= 0 {
		c.Pool.AcquisitionTimeout = 30 * time.Second
	}
	if c.Pool.HealthCheckInterval <= 0 {
		c.Pool.HealthCheckInterval = 30 * time.Second
	}
	if c.Pool.IdleEvictionInterval <= 0 {
		c.Pool.IdleEvictionInterval = time.Minute
	}
	if c.Pool.RecycleCheckInterval <= 0 {
		c.Pool.RecycleCheckInterval = time.Minute
	}
	if c.Pool.MaxBrowserAge <= 0 {
		c.Pool.MaxBrowserAge = 2 * time.Hour
	}
	if c.Pool.MaxBrowserUses <= 0 {
		c.Pool.MaxBrowserUses = 500
	}
	if c.Pool.MaxBrowserErrors <= 0 {
		c.Pool.MaxBrowserErrors = 10
	}

	if c.Store.Type == "" {
		c.Store.Type = "auto"
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = "browsercore"
	}
	if c.Store.MaxRetries <= 0 {
		c.Store.MaxRetries = 3
	}
	if c.Store.RetryDelay <= 0 {
		c.Store.RetryDelay = 500 * time.Millisecond
	}
	if c.Store.Monitoring.Interval <= 0 {
		c.Store.Monitoring.Interval = 30 * time.Second
	}
	if c.Store.Monitoring.LatencyWarnThreshold <= 0 {
		c.Store.Monitoring.LatencyWarnThreshold = 200 * time.Millisecond
	}
	if c.Store.Monitoring.ErrorRateThreshold <= 0 {
		c.Store.Monitoring.ErrorRateThreshold = 0.05
	}
	if c.Store.Replication.Mode == "" {
		c.Store.Replication.Mode = "none"
	}
	if c.Store.Replication.SyncInterval <= 0 {
		c.Store.Replication.SyncInterval = 5 * time.Second
	}
	if c.Store.Replication.BatchSize <= 0 {
		c.Store.Replication.BatchSize = 100
	}
	if c.Store.Replication.ConflictResolution == "" {
		c.Store.Replication.ConflictResolution = "last-write-wins"
	}
	if c.Store.Migration.BatchSize <= 0 {
		c.Store.Migration.BatchSize = 200
	}

	if c.Executor.DefaultTimeouts.Navigate <= 0 {
		c.Executor.DefaultTimeouts.Navigate = 30 * time.Second
	}
	if c.Executor.DefaultTimeouts.Evaluate <= 0 {
		c.Executor.DefaultTimeouts.Evaluate = 10 * time.Second
	}
	if c.Executor.DefaultTimeouts.Screenshot <= 0 {
		c.Executor.DefaultTimeouts.Screenshot = 30 * time.Second
	}
	if c.Executor.DefaultTimeouts.Wait <= 0 {
		c.Executor.DefaultTimeouts.Wait = 30 * time.Second
	}
	if c.Executor.MaxResultBytes <= 0 {
		c.Executor.MaxResultBytes = 100 * 1024
	}
	if c.Executor.MaxArgCount <= 0 {
		c.Executor.MaxArgCount = 10
	}
	if c.Executor.MaxArgBytes <= 0 {
		c.Executor.MaxArgBytes = 10_000
	}
	if c.Executor.MaxNestingDepth <= 0 {
		c.Executor.MaxNestingDepth = 20
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks the config for internally inconsistent values that
// ApplyDefaults cannot safely paper over.
func (c *CoreConfig) Validate() error {
	if c.Pool.MaxBrowsers < c.Pool.MinBrowsers {
		return fmt.Errorf("pool.max_browsers (%d) must be >= pool.min_browsers (%d)", c.Pool.MaxBrowsers, c.Pool.MinBrowsers)
	}
	switch c.Store.Type {
	case "redis", "memory", "auto":
	default:
		return fmt.Errorf("store.type must be one of redis|memory|auto, got %q", c.Store.Type)
	}
	switch c.Store.Replication.ConflictResolution {
	case "last-write-wins", "oldest-wins", "manual":
	default:
		return fmt.Errorf("store.replication.conflict_resolution must be one of last-write-wins|oldest-wins|manual, got %q", c.Store.Replication.ConflictResolution)
	}
	return nil
}

// LoadFromFile reads and parses a YAML config document, applying defaults
// and validating the result.
func LoadFromFile(path string) (*CoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg CoreConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
