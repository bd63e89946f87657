// Package constants provides centralized domain-specific constants
// for healthmon.
package constants

// =============================================================================
// Metric Types - record categories
// =============================================================================

const (
	MetricTypeCPU     = "cpu"
	MetricTypeMemory  = "memory"
	MetricTypeDisk    = "disk"
	MetricTypeNetwork = "network"
	MetricTypeGPU     = "gpu"
)

// KnownMetricTypes lists the metric types produced by the bundled
// collectors. The set is open: the store accepts any valid name.
var KnownMetricTypes = []string{
	MetricTypeCPU,
	MetricTypeMemory,
	MetricTypeDisk,
	MetricTypeNetwork,
	MetricTypeGPU,
}

// AnalyzableMetricTypes are the types accepted by `healthmon analyze`.
var AnalyzableMetricTypes = []string{
	MetricTypeCPU,
	MetricTypeMemory,
	MetricTypeDisk,
	MetricTypeNetwork,
}

// IsAnalyzableMetricType checks if t may be passed to the analyze command.
func IsAnalyzableMetricType(t string) bool {
	for _, s := range AnalyzableMetricTypes {
		if s == t {
			return true
		}
	}
	return false
}

// =============================================================================
// Record Status
// =============================================================================

const (
	StatusOK       = "OK"
	StatusWarning  = "WARNING"
	StatusCritical = "CRITICAL"
)

// =============================================================================
// Trend Direction
// =============================================================================

const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// =============================================================================
// Payload Keys
// =============================================================================

const (
	// KeyUsagePercent is the payload field analysed by default.
	KeyUsagePercent = "usage_percent"
)

// =============================================================================
// Database Engines
// =============================================================================

const (
	EngineSQLite = "sqlite"
	EngineDuckDB = "duckdb"
)

// ValidEngines contains all supported store engines.
var ValidEngines = []string{EngineSQLite, EngineDuckDB}

// IsValidEngine checks if an engine name is supported.
func IsValidEngine(engine string) bool {
	for _, e := range ValidEngines {
		if e == engine {
			return true
		}
	}
	return false
}
