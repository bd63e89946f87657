package analytics

import (
	"encoding/json"
	"time"

	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

// ExtractValues returns payload[key] of every record that carries a finite
// number there, in record order.
func ExtractValues(records []types.MetricRecord, key string) []float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Payload.Float(key); ok {
			values = append(values, v)
		}
	}
	return values
}

// Analysis is the summary of one payload key over a series.
type Analysis struct {
	Key string

	// NoData marks a series without a single usable value. All other
	// fields are then zero.
	NoData bool

	DataPoints    int
	Statistics    Distribution
	Trend         Trend
	Anomalies     []int
	AnomalyCount  int
	MovingAverage []float64
	Predicted     *float64

	// From and To span the analysed records.
	From time.Time
	To   time.Time
}

// Err returns errors.ErrNoData for a NoData analysis and nil otherwise.
func (a Analysis) Err() error {
	if a.NoData {
		return errors.ErrNoData
	}
	return nil
}

// MarshalJSON implements json.Marshaler. A NoData analysis is rendered as
// {"error": "no valid data points"}.
func (a Analysis) MarshalJSON() ([]byte, error) {
	if a.NoData {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{errors.ErrNoData.Error()})
	}

	return json.Marshal(struct {
		DataPoints    int          `json:"data_points"`
		Statistics    Distribution `json:"statistics"`
		Trend         Trend        `json:"trend"`
		AnomalyCount  int          `json:"anomalies_count"`
		MovingAverage []float64    `json:"moving_avg_5"`
		Predicted     *float64     `json:"predicted_next,omitempty"`
	}{
		DataPoints:    a.DataPoints,
		Statistics:    a.Statistics,
		Trend:         a.Trend,
		AnomalyCount:  a.AnomalyCount,
		MovingAverage: a.MovingAverage,
		Predicted:     a.Predicted,
	})
}
