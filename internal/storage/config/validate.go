package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xtxerr/healthmon/internal/constants"
	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/logging"
	"github.com/xtxerr/healthmon/internal/storage/types"
	"github.com/xtxerr/healthmon/internal/validation"
)

// Validate checks the configuration for errors. All problems are reported
// at once; the result matches errors.ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := c.Retention.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retention: %w", err))
	}

	if err := c.Archive.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("archive: %w", err))
	}

	if err := c.Analysis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	}

	if err := c.Collector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("collector: %w", err))
	}

	if err := c.Rollup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rollup: %w", err))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errors.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	var errs []error

	if !constants.IsValidEngine(c.Engine) {
		errs = append(errs, fmt.Errorf("engine must be one of: %v", constants.ValidEngines))
	}

	if c.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}

	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write_timeout must be positive"))
	}

	if c.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("max_open_conns must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the retention configuration.
func (c *RetentionConfig) Validate() error {
	var errs []error

	if c.Period < 0 {
		errs = append(errs, errors.New("period must be non-negative"))
	}

	if c.Enabled && c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive when enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the archive configuration.
func (c *ArchiveConfig) Validate() error {
	validAlgorithms := map[string]bool{
		"zstd":   true,
		"snappy": true,
		"none":   true,
		"":       true, // Empty defaults to zstd
	}
	var errs []error
	if !validAlgorithms[c.Compression] {
		errs = append(errs, errors.New("compression must be one of: zstd, snappy, none"))
	}
	if c.Retention < 0 {
		errs = append(errs, errors.New("archive retention must not be negative"))
	}
	return errors.Join(errs...)
}

// Validate checks the analysis configuration.
func (c *AnalysisConfig) Validate() error {
	var errs []error

	if c.TrendThreshold < 0 {
		errs = append(errs, errors.New("trend_threshold must be non-negative"))
	}

	if c.ZThreshold <= 0 {
		errs = append(errs, errors.New("z_threshold must be positive"))
	}

	if c.PredictWindow < 2 {
		errs = append(errs, errors.New("predict_window must be at least 2"))
	}

	if c.DefaultKey == "" {
		errs = append(errs, errors.New("default_key is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the collector configuration.
func (c *CollectorConfig) Validate() error {
	var errs []error

	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}

	if c.Hostname != "" {
		if err := validation.ValidateHostname(c.Hostname); err != nil {
			errs = append(errs, err)
		}
	}

	if err := validation.ValidateSource(c.Source); err != nil {
		errs = append(errs, err)
	}

	if c.PendingCapacity <= 0 {
		errs = append(errs, errors.New("pending_capacity must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the rollup configuration.
func (c *RollupConfig) Validate() error {
	var errs []error

	if _, err := types.ParseResolution(c.Resolution); err != nil {
		errs = append(errs, err)
	}

	if c.Percentiles && (c.Accuracy <= 0 || c.Accuracy >= 1) {
		errs = append(errs, errors.New("accuracy must be between 0 and 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ArchiveDir returns the archive directory path.
func (c *Config) ArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(filepath.Dir(c.Database.Path), "archive")
}

// EnsureDirectories creates the database directory and, when archiving is
// enabled, the archive directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Database.Path)}
	if c.Archive.Enabled {
		dirs = append(dirs, c.ArchiveDir())
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
