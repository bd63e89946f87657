// Package analytics derives summary statistics from metric history: trend
// direction, z-score anomalies, percentile distributions and a short-horizon
// prediction.
//
// Every function is pure. Data-quality problems never produce errors; they
// degrade to empty results or to an Analysis marked NoData.
package analytics

import (
	"github.com/xtxerr/healthmon/config"
	storageconfig "github.com/xtxerr/healthmon/internal/storage/config"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

// Analyzer applies configured thresholds. The zero value is not usable;
// construct with New or Default.
type Analyzer struct {
	trendThreshold float64
	zThreshold     float64
	predictWindow  int
}

// maWindow is the moving-average window reported as moving_avg_5. It is
// fixed so the JSON key always describes its contents.
const maWindow = 5

// New returns an Analyzer for cfg. Unset fields take the defaults.
func New(cfg storageconfig.AnalysisConfig) *Analyzer {
	a := Default()
	if cfg.TrendThreshold > 0 {
		a.trendThreshold = cfg.TrendThreshold
	}
	if cfg.ZThreshold > 0 {
		a.zThreshold = cfg.ZThreshold
	}
	if cfg.PredictWindow >= 2 {
		a.predictWindow = cfg.PredictWindow
	}
	return a
}

// Default returns an Analyzer with the default thresholds.
func Default() *Analyzer {
	return &Analyzer{
		trendThreshold: config.DefaultTrendThreshold,
		zThreshold:     config.DefaultZThreshold,
		predictWindow:  config.DefaultPredictWindow,
	}
}

// Trend classifies values with the configured threshold.
func (a *Analyzer) Trend(values []float64) Trend {
	return DetectTrend(values, a.trendThreshold)
}

// Anomalies returns anomaly indices with the configured z threshold.
func (a *Analyzer) Anomalies(values []float64) []int {
	return DetectAnomalies(values, a.zThreshold)
}

// Predict extrapolates the next value over the configured window.
func (a *Analyzer) Predict(values []float64) (float64, bool) {
	return predictNext(values, a.predictWindow)
}

// Analyze summarizes payload[key] over records. Records whose value is
// absent or not a finite number are skipped; if none remain the result is
// marked NoData.
func (a *Analyzer) Analyze(records []types.MetricRecord, key string) Analysis {
	values := ExtractValues(records, key)
	if len(values) == 0 {
		return Analysis{Key: key, NoData: true}
	}

	recent := values
	if len(values) >= maWindow {
		ma := MovingAverage(values, maWindow)
		if len(ma) > maWindow {
			ma = ma[len(ma)-maWindow:]
		}
		recent = ma
	}

	anomalies := a.Anomalies(values)

	analysis := Analysis{
		Key:           key,
		DataPoints:    len(values),
		Statistics:    Percentiles(values),
		Trend:         a.Trend(values),
		Anomalies:     anomalies,
		AnomalyCount:  len(anomalies),
		MovingAverage: recent,
	}
	if next, ok := a.Predict(values); ok {
		analysis.Predicted = &next
	}
	if len(records) > 0 {
		analysis.From = records[0].Timestamp
		analysis.To = records[len(records)-1].Timestamp
	}
	return analysis
}

// PredictNext extrapolates the next value from the last ten values.
func PredictNext(values []float64) (float64, bool) {
	return predictNext(values, config.DefaultPredictWindow)
}

// AnalyzeSeries is Analyze with the default thresholds.
func AnalyzeSeries(records []types.MetricRecord, key string) Analysis {
	return Default().Analyze(records, key)
}
