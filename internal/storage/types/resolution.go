package types

import (
	"fmt"
	"time"
)

// Resolution is the bucket size of a rollup report.
type Resolution int

const (
	// ResolutionMinute groups readings into one-minute buckets.
	ResolutionMinute Resolution = iota

	// Resolution5Min groups readings into five-minute buckets.
	Resolution5Min

	// ResolutionHourly groups readings into hourly buckets.
	ResolutionHourly

	// ResolutionDaily groups readings into UTC calendar days.
	ResolutionDaily
)

// String returns the string representation of the resolution.
func (r Resolution) String() string {
	switch r {
	case ResolutionMinute:
		return "1min"
	case Resolution5Min:
		return "5min"
	case ResolutionHourly:
		return "hourly"
	case ResolutionDaily:
		return "daily"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}

// Duration returns the bucket duration for this resolution.
func (r Resolution) Duration() time.Duration {
	switch r {
	case ResolutionMinute:
		return time.Minute
	case Resolution5Min:
		return 5 * time.Minute
	case ResolutionHourly:
		return time.Hour
	case ResolutionDaily:
		return 24 * time.Hour
	default:
		return 0
	}
}

// TruncateToBucket truncates a timestamp to the start of its bucket.
func (r Resolution) TruncateToBucket(ts time.Time) time.Time {
	ts = ts.UTC()
	switch r {
	case ResolutionDaily:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	case ResolutionMinute, Resolution5Min, ResolutionHourly:
		return ts.Truncate(r.Duration())
	default:
		return ts
	}
}

// ParseResolution parses a string into a Resolution.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "1min", "minute":
		return ResolutionMinute, nil
	case "5min":
		return Resolution5Min, nil
	case "hourly", "1h":
		return ResolutionHourly, nil
	case "daily", "1d":
		return ResolutionDaily, nil
	default:
		return ResolutionMinute, fmt.Errorf("unknown resolution: %s", s)
	}
}

// AllResolutions returns all available resolutions in order.
func AllResolutions() []Resolution {
	return []Resolution{ResolutionMinute, Resolution5Min, ResolutionHourly, ResolutionDaily}
}

// SelectResolutionForRange picks a resolution that keeps a report over
// [start, end] at a readable number of rows.
func SelectResolutionForRange(start, end time.Time) Resolution {
	duration := end.Sub(start)

	switch {
	case duration <= 2*time.Hour:
		return ResolutionMinute
	case duration <= 24*time.Hour:
		return Resolution5Min
	case duration <= 14*24*time.Hour:
		return ResolutionHourly
	default:
		return ResolutionDaily
	}
}
