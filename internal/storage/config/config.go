// Package config defines the YAML configuration of the store, the retention
// worker, the archive, the analytics engine, the collector and the rollup
// reports.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/healthmon/config"
)

// Config represents the complete healthmon configuration.
type Config struct {
	// Database configures the metrics store.
	Database DatabaseConfig `yaml:"database"`

	// Retention configures the age-based cleanup of records.
	Retention RetentionConfig `yaml:"retention"`

	// Archive configures Parquet archiving of swept records.
	Archive ArchiveConfig `yaml:"archive"`

	// Analysis configures the analytics thresholds.
	Analysis AnalysisConfig `yaml:"analysis"`

	// Collector configures snapshot ingestion.
	Collector CollectorConfig `yaml:"collector"`

	// Rollup configures bucketed reports.
	Rollup RollupConfig `yaml:"rollup"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the metrics store.
type DatabaseConfig struct {
	// Engine is the storage engine: sqlite or duckdb.
	Engine string `yaml:"engine"`

	// Path is the database file.
	Path string `yaml:"path"`

	// WriteTimeout bounds how long a write waits for the write lock.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxOpenConns is the connection pool size.
	MaxOpenConns int `yaml:"max_open_conns"`
}

// RetentionConfig configures the age-based cleanup of records.
type RetentionConfig struct {
	// Enabled runs the retention worker alongside ingestion.
	Enabled bool `yaml:"enabled"`

	// Period is how long records are kept.
	// Format: "168h"
	Period time.Duration `yaml:"period"`

	// Interval is how often the worker sweeps.
	Interval time.Duration `yaml:"interval"`
}

// ArchiveConfig configures Parquet archiving of swept records.
type ArchiveConfig struct {
	// Enabled writes swept records to Dir before deleting them.
	Enabled bool `yaml:"enabled"`

	// Dir is the archive directory.
	Dir string `yaml:"dir"`

	// Compression is the compression algorithm: zstd, snappy, none.
	Compression string `yaml:"compression"`

	// Retention is how long archive files are kept. Zero keeps them
	// forever.
	// Format: "2160h"
	Retention time.Duration `yaml:"retention"`
}

// AnalysisConfig configures the analytics thresholds.
type AnalysisConfig struct {
	// TrendThreshold is the minimum relative change rate of a trend.
	TrendThreshold float64 `yaml:"trend_threshold"`

	// ZThreshold is the z-score above which a value is an anomaly.
	ZThreshold float64 `yaml:"z_threshold"`

	// PredictWindow is how many trailing values the predictor fits.
	PredictWindow int `yaml:"predict_window"`

	// DefaultKey is the payload key analysed when none is given.
	DefaultKey string `yaml:"default_key"`
}

// CollectorConfig configures snapshot ingestion.
type CollectorConfig struct {
	// File is the JSON snapshot written by the sampler.
	File string `yaml:"file"`

	// Interval is how often the snapshot is read.
	Interval time.Duration `yaml:"interval"`

	// Hostname overrides the hostname recorded with each reading.
	// Defaults to os.Hostname().
	Hostname string `yaml:"hostname"`

	// Source is the collector identity recorded with each reading.
	Source string `yaml:"source"`

	// PendingCapacity bounds the readings kept for retry after a
	// transient insert failure.
	PendingCapacity int `yaml:"pending_capacity"`
}

// RollupConfig configures bucketed reports.
type RollupConfig struct {
	// Resolution is the bucket size: 1min, 5min, hourly, daily.
	Resolution string `yaml:"resolution"`

	// Percentiles enables DDSketch percentiles per bucket.
	Percentiles bool `yaml:"percentiles"`

	// Accuracy is the relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches the handler to JSON output.
	JSON bool `yaml:"json"`
}

// Load loads configuration from a YAML file. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Engine:       config.DefaultEngine,
			Path:         config.DefaultDBPath,
			WriteTimeout: config.DefaultWriteTimeout,
			MaxOpenConns: config.DefaultMaxOpenConns,
		},
		Retention: RetentionConfig{
			Enabled:  false,
			Period:   config.DefaultRetentionPeriod,
			Interval: config.DefaultRetentionInterval,
		},
		Archive: ArchiveConfig{
			Enabled:     false,
			Compression: config.DefaultArchiveCompression,
		},
		Analysis: AnalysisConfig{
			TrendThreshold: config.DefaultTrendThreshold,
			ZThreshold:     config.DefaultZThreshold,
			PredictWindow:  config.DefaultPredictWindow,
			DefaultKey:     config.DefaultAnalysisKey,
		},
		Collector: CollectorConfig{
			File:            config.DefaultSnapshotFile,
			Interval:        config.DefaultCollectInterval,
			PendingCapacity: config.DefaultPendingCapacity,
		},
		Rollup: RollupConfig{
			Resolution:  config.DefaultRollupResolution,
			Percentiles: true,
			Accuracy:    config.DefaultSketchAccuracy,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
