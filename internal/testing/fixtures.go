package testing

import (
	"time"

	"github.com/xtxerr/healthmon/internal/storage/types"
)

// Reading returns a reading for host with payload {"usage_percent": usage}.
func Reading(host, metricType string, usage float64) types.Reading {
	return types.Reading{
		Hostname:   host,
		MetricType: metricType,
		Payload:    types.Payload{"usage_percent": usage},
	}
}

// Series builds records of one host and metric type whose payload key
// carries values, one record per step starting at start.
func Series(start time.Time, step time.Duration, metricType, key string, values ...float64) []types.MetricRecord {
	records := make([]types.MetricRecord, len(values))
	for i, v := range values {
		records[i] = types.MetricRecord{
			ID:         int64(i + 1),
			Timestamp:  start.Add(time.Duration(i) * step).UTC(),
			Hostname:   "test-host",
			MetricType: metricType,
			Payload:    types.Payload{key: v},
			Status:     types.DefaultStatus,
			Source:     types.DefaultSource,
		}
	}
	return records
}
