package aggregate

import (
	"math"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/healthmon/internal/storage/types"
)

// StreamingAggregate maintains running statistics of one payload key for a
// single series and time bucket. It supports optional percentile
// calculation using DDSketch.
type StreamingAggregate struct {
	mu sync.Mutex

	// Identity
	hostname   string
	metricType string
	key        string

	// Time bucket
	bucketStart time.Time
	bucketEnd   time.Time

	// Running statistics
	count int64
	sum   float64
	min   float64
	max   float64
	first time.Time
	last  time.Time

	// DDSketch for percentiles (nil if disabled)
	sketch   *ddsketch.DDSketch
	accuracy float64
}

// New creates a new StreamingAggregate for the given bucket. An accuracy of
// zero disables percentiles.
func New(hostname, metricType, key string, bucketStart, bucketEnd time.Time, accuracy float64) *StreamingAggregate {
	agg := &StreamingAggregate{
		hostname:    hostname,
		metricType:  metricType,
		key:         key,
		bucketStart: bucketStart,
		bucketEnd:   bucketEnd,
		min:         math.MaxFloat64,
		max:         -math.MaxFloat64,
		accuracy:    accuracy,
	}
	agg.sketch = newSketch(accuracy)
	return agg
}

func newSketch(accuracy float64) *ddsketch.DDSketch {
	if accuracy <= 0 {
		return nil
	}
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil
	}
	return sketch
}

// Add adds a value observed at ts.
func (a *StreamingAggregate) Add(value float64, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	a.sum += value

	if value < a.min {
		a.min = value
	}
	if value > a.max {
		a.max = value
	}

	if a.first.IsZero() || ts.Before(a.first) {
		a.first = ts
	}
	if ts.After(a.last) {
		a.last = ts
	}

	if a.sketch != nil {
		// DDSketch rejects values outside its indexable range; the basic
		// statistics still count them.
		_ = a.sketch.Add(value)
	}
}

// AddRecord adds the record's value for the aggregate's key. Records
// without a numeric value are ignored; AddRecord reports whether the record
// was counted.
func (a *StreamingAggregate) AddRecord(r types.MetricRecord) bool {
	v, ok := r.Payload.Float(a.key)
	if !ok {
		return false
	}
	a.Add(v, r.Timestamp)
	return true
}

// Count returns the number of values added.
func (a *StreamingAggregate) Count() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// IsEmpty returns true if no values have been added.
func (a *StreamingAggregate) IsEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count == 0
}

// Result returns the aggregation result.
func (a *StreamingAggregate) Result() types.AggregateResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := types.AggregateResult{
		Hostname:    a.hostname,
		MetricType:  a.metricType,
		Key:         a.key,
		BucketStart: a.bucketStart,
		BucketEnd:   a.bucketEnd,
		Count:       a.count,
		Sum:         a.sum,
		First:       a.first,
		Last:        a.last,
	}

	if a.count > 0 {
		result.Avg = a.sum / float64(a.count)
		result.Min = a.min
		result.Max = a.max
	}

	if a.sketch != nil && a.count > 0 && !a.sketch.IsEmpty() {
		qs, err := a.sketch.GetValuesAtQuantiles([]float64{0.50, 0.90, 0.95, 0.99})
		if err == nil {
			result.SetPercentiles(qs[0], qs[1], qs[2], qs[3])
		}
	}

	return result
}

// Reset resets the aggregate for a new bucket.
func (a *StreamingAggregate) Reset(bucketStart, bucketEnd time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.bucketStart = bucketStart
	a.bucketEnd = bucketEnd
	a.count = 0
	a.sum = 0
	a.min = math.MaxFloat64
	a.max = -math.MaxFloat64
	a.first = time.Time{}
	a.last = time.Time{}

	if a.sketch != nil {
		a.sketch.Clear()
	}
}

// Merge combines another aggregate into this one.
// Both aggregates must be for the same time bucket.
func (a *StreamingAggregate) Merge(other *StreamingAggregate) {
	if other == nil || other == a {
		return
	}

	other.mu.Lock()
	defer other.mu.Unlock()
	if other.count == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.count += other.count
	a.sum += other.sum

	if other.min < a.min {
		a.min = other.min
	}
	if other.max > a.max {
		a.max = other.max
	}

	if a.first.IsZero() || (!other.first.IsZero() && other.first.Before(a.first)) {
		a.first = other.first
	}
	if other.last.After(a.last) {
		a.last = other.last
	}

	if a.sketch != nil && other.sketch != nil {
		_ = a.sketch.MergeWith(other.sketch)
	}
}

// BucketStart returns the bucket start.
func (a *StreamingAggregate) BucketStart() time.Time {
	return a.bucketStart
}

// BucketEnd returns the bucket end.
func (a *StreamingAggregate) BucketEnd() time.Time {
	return a.bucketEnd
}

// SeriesKey returns the series this aggregate belongs to.
func (a *StreamingAggregate) SeriesKey() string {
	return a.hostname + "/" + a.metricType
}
