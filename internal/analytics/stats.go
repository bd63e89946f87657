package analytics

import (
	"math"
	"sort"
)

// Trend is the direction of a series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// MovingAverage returns the mean of every contiguous window of length
// window, in order. When values is shorter than window, or window is not
// positive, values is returned unchanged.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 0 || len(values) < window {
		return values
	}

	out := make([]float64, 0, len(values)-window+1)
	for i := 0; i+window <= len(values); i++ {
		var sum float64
		for _, v := range values[i : i+window] {
			sum += v
		}
		out = append(out, sum/float64(window))
	}
	return out
}

// fitLine returns the least-squares slope and intercept of values against
// their index. ok is false when the fit is undefined (fewer than two
// points).
func fitLine(values []float64) (slope, intercept, mean float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, false
	}

	xMean := float64(n-1) / 2
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var num, den float64
	for i, v := range values {
		dx := float64(i) - xMean
		num += dx * (v - mean)
		den += dx * dx
	}
	if den == 0 {
		return 0, mean, mean, false
	}

	slope = num / den
	return slope, mean - slope*xMean, mean, true
}

// DetectTrend classifies values by the least-squares slope against index,
// relative to the mean. A relative change below threshold is stable, as is
// any series with fewer than two points. A zero mean counts as no change.
func DetectTrend(values []float64, threshold float64) Trend {
	if len(values) < 2 {
		return TrendStable
	}

	slope, _, mean, ok := fitLine(values)
	if !ok {
		return TrendStable
	}

	var changeRate float64
	if mean != 0 {
		changeRate = math.Abs(slope / mean)
	}

	switch {
	case changeRate < threshold:
		return TrendStable
	case slope > 0:
		return TrendIncreasing
	default:
		return TrendDecreasing
	}
}

// DetectAnomalies returns, in order, the indices whose distance from the
// mean exceeds z sample standard deviations. Fewer than three values, or no
// variation, yields none.
func DetectAnomalies(values []float64, z float64) []int {
	n := len(values)
	if n < 3 {
		return []int{}
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	stdev := math.Sqrt(ss / float64(n-1))
	if stdev == 0 {
		return []int{}
	}

	anomalies := []int{}
	for i, v := range values {
		if math.Abs(v-mean)/stdev > z {
			anomalies = append(anomalies, i)
		}
	}
	return anomalies
}

// Distribution summarizes a sample. Count is zero for an empty sample and
// every other field is then zero.
type Distribution struct {
	Count  int     `json:"-"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// IsEmpty returns true if the distribution was computed from no values.
func (d Distribution) IsEmpty() bool {
	return d.Count == 0
}

// Percentiles computes the distribution of values. The input is not
// modified.
func Percentiles(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Distribution{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median,
		P25:    percentile(sorted, 25),
		P75:    percentile(sorted, 75),
		P90:    percentile(sorted, 90),
		P95:    percentile(sorted, 95),
		P99:    percentile(sorted, 99),
	}
}

// percentile interpolates linearly between the two order statistics around
// index (n-1)*p/100, clamping to the last element.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	index := float64(len(sorted)-1) * p / 100
	lower := int(math.Floor(index))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// predictNext extrapolates the least-squares line through the last window
// values one step ahead, rounded to two decimals. A flat index spread
// returns the last value. ok is false for fewer than two values.
func predictNext(values []float64, window int) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	if window >= 2 && len(values) > window {
		values = values[len(values)-window:]
	}

	slope, intercept, _, ok := fitLine(values)
	if !ok {
		return values[len(values)-1], true
	}

	next := slope*float64(len(values)) + intercept
	return math.Round(next*100) / 100, true
}
