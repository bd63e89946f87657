// Package config provides configuration defaults for the healthmon
// application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via healthmon.yaml or command line flags.
package config

import "time"

// =============================================================================
// Database Defaults
// =============================================================================

const (
	// DefaultDBPath is the database file used when none is configured.
	// Override via config: database.path or --db-path
	DefaultDBPath = "system_metrics.db"

	// DefaultEngine is the storage engine.
	// Override via config: database.engine
	DefaultEngine = "sqlite"

	// DefaultWriteTimeout bounds how long an insert waits for the write
	// lock, both inside the process and on the database file.
	// Override via config: database.write_timeout
	DefaultWriteTimeout = 30 * time.Second

	// DefaultMaxOpenConns is the connection pool size. Readers share the
	// pool with the single writer.
	// Override via config: database.max_open_conns
	DefaultMaxOpenConns = 4
)

// =============================================================================
// Retention Defaults
// =============================================================================

const (
	// DefaultRetentionDays is how many days of records cleanup keeps.
	// Override via config: retention.period or --retention-days
	DefaultRetentionDays = 7

	// DefaultRetentionPeriod is DefaultRetentionDays as a duration.
	DefaultRetentionPeriod = DefaultRetentionDays * 24 * time.Hour

	// DefaultRetentionInterval is how often the background worker sweeps.
	// Override via config: retention.interval
	DefaultRetentionInterval = time.Hour
)

// =============================================================================
// Archive Defaults
// =============================================================================

const (
	// DefaultArchiveCompression is the Parquet codec for swept records.
	// Valid: zstd, snappy, none
	// Override via config: archive.compression
	DefaultArchiveCompression = "zstd"
)

// =============================================================================
// Analysis Defaults
// =============================================================================

const (
	// DefaultTrendThreshold is the minimum relative change rate that is
	// reported as a trend.
	// Override via config: analysis.trend_threshold
	DefaultTrendThreshold = 0.1

	// DefaultZThreshold is the z-score above which a value is an anomaly.
	// Override via config: analysis.z_threshold
	DefaultZThreshold = 2.0

	// DefaultPredictWindow is how many trailing values the predictor fits.
	// Override via config: analysis.predict_window
	DefaultPredictWindow = 10

	// DefaultAnalysisHours is the look-back window of the analyze command.
	// Override via --hours
	DefaultAnalysisHours = 24

	// DefaultAnalysisKey is the payload key analysed when none is given.
	// Override via config: analysis.default_key or --key
	DefaultAnalysisKey = "usage_percent"
)

// =============================================================================
// Collector Defaults
// =============================================================================

const (
	// DefaultCollectInterval is how often the snapshot file is read.
	// Override via config: collector.interval or --interval
	DefaultCollectInterval = 60 * time.Second

	// DefaultSnapshotFile is the JSON snapshot written by the sampler.
	// Override via config: collector.file or --file
	DefaultSnapshotFile = "latest_metrics.json"

	// DefaultPendingCapacity is how many readings that failed with a
	// transient error are kept for the next cycle.
	// Override via config: collector.pending_capacity
	DefaultPendingCapacity = 256
)

// =============================================================================
// Rollup Defaults
// =============================================================================

const (
	// DefaultRollupResolution is the report bucket size.
	// Valid: 1min, 5min, hourly, daily
	// Override via config: rollup.resolution or --bucket
	DefaultRollupResolution = "hourly"

	// DefaultSketchAccuracy is the DDSketch relative accuracy.
	// Override via config: rollup.accuracy
	DefaultSketchAccuracy = 0.01
)

// =============================================================================
// Query Defaults
// =============================================================================

const (
	// DefaultLatestLimit is the number of records `database latest` prints.
	// Override via --limit
	DefaultLatestLimit = 10
)
