package aggregate

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/healthmon/internal/errors"
	storageconfig "github.com/xtxerr/healthmon/internal/storage/config"
	"github.com/xtxerr/healthmon/internal/storage/types"
	testutil "github.com/xtxerr/healthmon/internal/testing"
)

var t0 = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

func TestStreamingAggregate_Basic(t *testing.T) {
	agg := New("web-01", "cpu", "usage_percent", t0, t0.Add(5*time.Minute), 0)

	if !agg.IsEmpty() {
		t.Error("new aggregate should be empty")
	}

	agg.Add(10.0, t0)
	agg.Add(20.0, t0.Add(time.Second))
	agg.Add(30.0, t0.Add(2*time.Second))

	if agg.Count() != 3 {
		t.Errorf("expected count=3, got %d", agg.Count())
	}

	result := agg.Result()

	if result.Sum != 60.0 {
		t.Errorf("expected sum=60, got %f", result.Sum)
	}
	if result.Min != 10.0 {
		t.Errorf("expected min=10, got %f", result.Min)
	}
	if result.Max != 30.0 {
		t.Errorf("expected max=30, got %f", result.Max)
	}
	if math.Abs(result.Avg-20.0) > 0.001 {
		t.Errorf("expected avg=20, got %f", result.Avg)
	}
	if !result.First.Equal(t0) || !result.Last.Equal(t0.Add(2*time.Second)) {
		t.Errorf("unexpected first/last: %v %v", result.First, result.Last)
	}
	if result.HasPercentiles() {
		t.Error("should not have percentiles")
	}
	if result.SeriesKey() != "web-01/cpu" {
		t.Errorf("unexpected series key %s", result.SeriesKey())
	}
}

func TestStreamingAggregate_WithPercentiles(t *testing.T) {
	agg := New("web-01", "latency", "ms", t0, t0.Add(5*time.Minute), 0.01)

	// 1, 2, ..., 100
	for i := 1; i <= 100; i++ {
		agg.Add(float64(i), t0.Add(time.Duration(i)*time.Second))
	}

	result := agg.Result()
	if !result.HasPercentiles() {
		t.Fatal("should have percentiles")
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"p50", *result.P50, 50},
		{"p90", *result.P90, 90},
		{"p95", *result.P95, 95},
		{"p99", *result.P99, 99},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 2.0 {
			t.Errorf("expected %s near %v, got %f", c.name, c.want, c.got)
		}
	}
}

func TestStreamingAggregate_AddRecord(t *testing.T) {
	agg := New("web-01", "cpu", "usage_percent", t0, t0.Add(time.Hour), 0)

	ok := agg.AddRecord(types.MetricRecord{Timestamp: t0, Payload: types.Payload{"usage_percent": 42.0}})
	if !ok {
		t.Error("numeric value should be counted")
	}

	skipped := []types.Payload{
		{},
		{"usage_percent": "42"},
		{"usage_percent": true},
		{"other": 1.0},
	}
	for _, p := range skipped {
		if agg.AddRecord(types.MetricRecord{Timestamp: t0, Payload: p}) {
			t.Errorf("payload %v should be skipped", p)
		}
	}

	if agg.Count() != 1 {
		t.Errorf("expected count=1, got %d", agg.Count())
	}
}

func TestStreamingAggregate_Reset(t *testing.T) {
	agg := New("web-01", "cpu", "usage_percent", t0, t0.Add(5*time.Minute), 0.01)

	agg.Add(10.0, t0)
	agg.Add(20.0, t0.Add(time.Second))

	next := t0.Add(5 * time.Minute)
	agg.Reset(next, next.Add(5*time.Minute))

	if !agg.IsEmpty() {
		t.Error("aggregate should be empty after reset")
	}
	if !agg.BucketStart().Equal(next) {
		t.Errorf("expected bucket start=%v, got %v", next, agg.BucketStart())
	}

	agg.Add(7.0, next)
	result := agg.Result()
	if result.Min != 7 || result.Max != 7 {
		t.Errorf("stale statistics after reset: %+v", result)
	}
	if result.HasPercentiles() && math.Abs(*result.P50-7) > 0.2 {
		t.Errorf("sketch not cleared: p50=%f", *result.P50)
	}
}

func TestStreamingAggregate_Merge(t *testing.T) {
	agg1 := New("web-01", "cpu", "usage_percent", t0, t0.Add(5*time.Minute), 0.01)
	agg1.Add(10.0, t0.Add(time.Second))
	agg1.Add(20.0, t0.Add(2*time.Second))

	agg2 := New("web-01", "cpu", "usage_percent", t0, t0.Add(5*time.Minute), 0.01)
	agg2.Add(30.0, t0)
	agg2.Add(40.0, t0.Add(3*time.Second))

	agg1.Merge(agg2)
	agg1.Merge(nil)
	agg1.Merge(agg1)

	result := agg1.Result()

	if result.Count != 4 {
		t.Errorf("expected count=4, got %d", result.Count)
	}
	if result.Sum != 100.0 {
		t.Errorf("expected sum=100, got %f", result.Sum)
	}
	if result.Min != 10.0 || result.Max != 40.0 {
		t.Errorf("expected min=10 max=40, got %f %f", result.Min, result.Max)
	}
	if !result.First.Equal(t0) {
		t.Errorf("expected first=%v, got %v", t0, result.First)
	}
	if !result.HasPercentiles() {
		t.Error("merged sketch should give percentiles")
	}
}

func TestStreamingAggregate_Concurrent(t *testing.T) {
	agg := New("web-01", "cpu", "usage_percent", t0, t0.Add(time.Hour), 0.01)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				agg.Add(float64(i), t0.Add(time.Duration(i)*time.Second))
			}
		}()
	}
	wg.Wait()

	if agg.Count() != 800 {
		t.Errorf("expected count=800, got %d", agg.Count())
	}
}

func TestManager_Buckets(t *testing.T) {
	m := NewManager(types.Resolution5Min, "usage_percent", 0)

	// Two series, readings every minute for 12 minutes.
	for i := 0; i < 12; i++ {
		ts := t0.Add(time.Duration(i) * time.Minute)
		m.Process(types.MetricRecord{Hostname: "web-01", MetricType: "cpu", Timestamp: ts, Payload: types.Payload{"usage_percent": float64(i)}})
		m.Process(types.MetricRecord{Hostname: "web-02", MetricType: "cpu", Timestamp: ts, Payload: types.Payload{"usage_percent": 50.0}})
	}

	if m.ActiveCount() != 6 {
		t.Fatalf("expected 6 active aggregates, got %d", m.ActiveCount())
	}

	results := m.FlushAll()
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}

	// Ordered by bucket, then series.
	if results[0].Hostname != "web-01" || results[1].Hostname != "web-02" {
		t.Errorf("unexpected order: %s %s", results[0].Hostname, results[1].Hostname)
	}
	if !results[2].BucketStart.Equal(t0.Add(5 * time.Minute)) {
		t.Errorf("unexpected bucket start %v", results[2].BucketStart)
	}

	first := results[0]
	if first.Count != 5 || first.Sum != 10 || first.Min != 0 || first.Max != 4 {
		t.Errorf("unexpected first bucket: %+v", first)
	}
	if first.Duration() != 5*time.Minute {
		t.Errorf("expected 5m bucket, got %v", first.Duration())
	}

	last := results[4]
	if last.Count != 2 || last.Avg != 10.5 {
		t.Errorf("unexpected last bucket: %+v", last)
	}

	if m.ActiveCount() != 0 {
		t.Error("FlushAll should clear active aggregates")
	}
	if stats := m.Stats(); stats.RecordsProcessed != 24 || stats.BucketsCompleted != 6 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestManager_OutOfOrder(t *testing.T) {
	m := NewManager(types.ResolutionHourly, "usage_percent", 0)

	records := testutil.Series(t0, 30*time.Minute, "cpu", "usage_percent", 1, 2, 3, 4)
	// Reverse the input.
	for i := len(records) - 1; i >= 0; i-- {
		m.Process(records[i])
	}

	results := m.FlushAll()
	if len(results) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(results))
	}
	if results[0].Sum != 3 || results[1].Sum != 7 {
		t.Errorf("unexpected sums %f %f", results[0].Sum, results[1].Sum)
	}
	if !results[0].First.Equal(t0) {
		t.Errorf("expected first=%v, got %v", t0, results[0].First)
	}
}

func TestManager_DailyBuckets(t *testing.T) {
	m := NewManager(types.ResolutionDaily, "usage_percent", 0)
	m.ProcessBatch(testutil.Series(t0, 6*time.Hour, "cpu", "usage_percent", 1, 1, 1, 1, 1, 1))

	results := m.FlushAll()
	if len(results) != 2 {
		t.Fatalf("expected 2 days, got %d", len(results))
	}
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	if !results[0].BucketStart.Equal(day) || !results[0].BucketEnd.Equal(day.AddDate(0, 0, 1)) {
		t.Errorf("unexpected day bucket %v - %v", results[0].BucketStart, results[0].BucketEnd)
	}
	if results[0].Count != 3 || results[1].Count != 3 {
		t.Errorf("unexpected counts %d %d", results[0].Count, results[1].Count)
	}
}

func TestManager_SkipsNonNumeric(t *testing.T) {
	m := NewManager(types.ResolutionHourly, "usage_percent", 0)

	m.Process(types.MetricRecord{Hostname: "h", MetricType: "cpu", Timestamp: t0, Payload: types.Payload{"usage_percent": "n/a"}})
	m.Process(types.MetricRecord{Hostname: "h", MetricType: "cpu", Timestamp: t0, Payload: types.Payload{}})
	m.Process(types.MetricRecord{Hostname: "h", MetricType: "cpu", Timestamp: t0, Payload: types.Payload{"usage_percent": 5.0}})

	stats := m.Stats()
	if stats.RecordsSkipped != 2 || stats.RecordsProcessed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestManager_FlushOlderThan(t *testing.T) {
	m := NewManager(types.ResolutionHourly, "usage_percent", 0.01)
	m.ProcessBatch(testutil.Series(t0, 30*time.Minute, "cpu", "usage_percent", 1, 2, 3, 4, 5))

	flushed := m.FlushOlderThan(t0.Add(2 * time.Hour))
	if len(flushed) != 2 {
		t.Fatalf("expected 2 flushed, got %d", len(flushed))
	}
	if !flushed[0].HasPercentiles() {
		t.Error("expected percentiles")
	}
	if m.ActiveCount() != 1 {
		t.Errorf("expected 1 active, got %d", m.ActiveCount())
	}
}

func TestNewManagerFromConfig(t *testing.T) {
	m, err := NewManagerFromConfig(storageconfig.RollupConfig{Resolution: "5min", Percentiles: true, Accuracy: 0.02}, "usage_percent")
	if err != nil {
		t.Fatalf("NewManagerFromConfig: %v", err)
	}
	if m.Resolution() != types.Resolution5Min || m.Key() != "usage_percent" || m.accuracy != 0.02 {
		t.Errorf("unexpected manager: %+v", m)
	}

	m, err = NewManagerFromConfig(storageconfig.RollupConfig{Resolution: "hourly", Accuracy: 0.02}, "usage_percent")
	if err != nil {
		t.Fatalf("NewManagerFromConfig: %v", err)
	}
	if m.accuracy != 0 {
		t.Error("percentiles disabled should zero the accuracy")
	}

	if _, err := NewManagerFromConfig(storageconfig.RollupConfig{Resolution: "weekly"}, "x"); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

type fakeQuerier struct {
	records []types.MetricRecord
	err     error
}

func (f fakeQuerier) QueryRange(_ context.Context, start, end time.Time, metricType string) ([]types.MetricRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []types.MetricRecord
	for _, r := range f.records {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		if metricType != "" && r.MetricType != metricType {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func TestRollup(t *testing.T) {
	q := fakeQuerier{records: testutil.Series(t0, 10*time.Minute, "cpu", "usage_percent", 10, 20, 30, 40, 50, 60, 70)}
	m := NewManager(types.ResolutionHourly, "usage_percent", 0)

	results, err := Rollup(context.Background(), q, m, t0, t0.Add(2*time.Hour), "cpu")
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(results))
	}
	if results[0].Count != 6 || results[0].Avg != 35 {
		t.Errorf("unexpected first bucket: %+v", results[0])
	}
	if results[1].Count != 1 || results[1].Max != 70 {
		t.Errorf("unexpected second bucket: %+v", results[1])
	}

	_, err = Rollup(context.Background(), fakeQuerier{err: errors.ErrStoreClosed}, m, t0, t0, "")
	if !errors.Is(err, errors.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func BenchmarkStreamingAggregate_Add(b *testing.B) {
	agg := New("web-01", "cpu", "usage_percent", t0, t0.Add(time.Hour), 0)
	for i := 0; i < b.N; i++ {
		agg.Add(float64(i%100), t0)
	}
}

func BenchmarkStreamingAggregate_AddWithPercentile(b *testing.B) {
	agg := New("web-01", "cpu", "usage_percent", t0, t0.Add(time.Hour), 0.01)
	for i := 0; i < b.N; i++ {
		agg.Add(float64(i%100), t0)
	}
}

func BenchmarkManager_Process(b *testing.B) {
	m := NewManager(types.Resolution5Min, "usage_percent", 0.01)
	r := types.MetricRecord{Hostname: "web-01", MetricType: "cpu", Payload: types.Payload{"usage_percent": 42.0}}
	for i := 0; i < b.N; i++ {
		r.Timestamp = t0.Add(time.Duration(i) * time.Second)
		m.Process(r)
	}
}
