package types

import "time"

// AggregateResult holds rolled-up statistics of one payload key for a single
// (hostname, metric type) series over one time bucket.
type AggregateResult struct {
	// Identity
	Hostname   string
	MetricType string
	Key        string // Payload key that was aggregated

	// Time bucket
	BucketStart time.Time
	BucketEnd   time.Time

	// Basic statistics
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Avg   float64

	// Percentiles, nil if the sketch was disabled
	P50 *float64
	P90 *float64
	P95 *float64
	P99 *float64

	// Timestamps of the first and last reading in the bucket
	First time.Time
	Last  time.Time
}

// SeriesKey returns the series identity of this aggregate.
func (a *AggregateResult) SeriesKey() string {
	return a.Hostname + "/" + a.MetricType
}

// Duration returns the bucket duration.
func (a *AggregateResult) Duration() time.Duration {
	return a.BucketEnd.Sub(a.BucketStart)
}

// IsEmpty returns true if no readings were aggregated.
func (a *AggregateResult) IsEmpty() bool {
	return a.Count == 0
}

// HasPercentiles returns true if percentile data is available.
func (a *AggregateResult) HasPercentiles() bool {
	return a.P50 != nil
}

// SetPercentiles sets all percentile values.
func (a *AggregateResult) SetPercentiles(p50, p90, p95, p99 float64) {
	a.P50 = &p50
	a.P90 = &p90
	a.P95 = &p95
	a.P99 = &p99
}
