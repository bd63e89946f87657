package aggregate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xtxerr/healthmon/internal/errors"
	storageconfig "github.com/xtxerr/healthmon/internal/storage/config"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

// Manager rolls metric records up into fixed buckets, one aggregate per
// (hostname, metric type, bucket). Records may arrive in any order.
type Manager struct {
	mu sync.RWMutex

	// Configuration
	resolution types.Resolution
	key        string
	accuracy   float64

	// Active aggregates: "hostname/metric_type@bucket" -> aggregate
	aggregates map[string]*StreamingAggregate

	// Statistics
	stats ManagerStats
}

// ManagerStats holds statistics for the manager.
type ManagerStats struct {
	ActiveAggregates int64
	RecordsProcessed int64
	RecordsSkipped   int64
	BucketsCompleted int64
}

// NewManager creates a manager aggregating payload key at resolution. An
// accuracy of zero disables percentiles.
func NewManager(resolution types.Resolution, key string, accuracy float64) *Manager {
	return &Manager{
		resolution: resolution,
		key:        key,
		accuracy:   accuracy,
		aggregates: make(map[string]*StreamingAggregate),
	}
}

// NewManagerFromConfig creates a manager from the rollup section of the
// configuration.
func NewManagerFromConfig(cfg storageconfig.RollupConfig, key string) (*Manager, error) {
	res, err := types.ParseResolution(cfg.Resolution)
	if err != nil {
		return nil, errors.NewValidation("rollup resolution", err.Error())
	}
	accuracy := 0.0
	if cfg.Percentiles {
		accuracy = cfg.Accuracy
	}
	return NewManager(res, key, accuracy), nil
}

// Process adds a record to the aggregate of its bucket. Records without a
// numeric value for the key are counted as skipped.
func (m *Manager) Process(r types.MetricRecord) {
	v, ok := r.Payload.Float(m.key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !ok {
		m.stats.RecordsSkipped++
		return
	}

	start, end := m.calculateBucket(r.Timestamp)
	id := aggregateID(r.Hostname, r.MetricType, start)

	agg, exists := m.aggregates[id]
	if !exists {
		agg = New(r.Hostname, r.MetricType, m.key, start, end, m.accuracy)
		m.aggregates[id] = agg
	}

	agg.Add(v, r.Timestamp)
	m.stats.RecordsProcessed++
}

// ProcessBatch processes multiple records.
func (m *Manager) ProcessBatch(records []types.MetricRecord) {
	for i := range records {
		m.Process(records[i])
	}
}

// FlushAll completes every aggregate and returns the results ordered by
// bucket start, then series.
func (m *Manager) FlushAll() []types.AggregateResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]types.AggregateResult, 0, len(m.aggregates))
	for _, agg := range m.aggregates {
		if !agg.IsEmpty() {
			results = append(results, agg.Result())
			m.stats.BucketsCompleted++
		}
	}
	m.aggregates = make(map[string]*StreamingAggregate)

	sortResults(results)
	return results
}

// FlushOlderThan completes aggregates whose bucket ended at or before cutoff.
func (m *Manager) FlushOlderThan(cutoff time.Time) []types.AggregateResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flushed []types.AggregateResult

	for id, agg := range m.aggregates {
		if !agg.BucketEnd().After(cutoff) {
			if !agg.IsEmpty() {
				flushed = append(flushed, agg.Result())
				m.stats.BucketsCompleted++
			}
			delete(m.aggregates, id)
		}
	}

	sortResults(flushed)
	return flushed
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := m.stats
	stats.ActiveAggregates = int64(len(m.aggregates))
	return stats
}

// ActiveCount returns the number of active aggregates.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.aggregates)
}

// Resolution returns the configured bucket resolution.
func (m *Manager) Resolution() types.Resolution {
	return m.resolution
}

// Key returns the payload key being aggregated.
func (m *Manager) Key() string {
	return m.key
}

// calculateBucket calculates the bucket start and end for a timestamp.
func (m *Manager) calculateBucket(ts time.Time) (start, end time.Time) {
	start = m.resolution.TruncateToBucket(ts)
	if m.resolution == types.ResolutionDaily {
		return start, start.AddDate(0, 0, 1)
	}
	return start, start.Add(m.resolution.Duration())
}

func aggregateID(hostname, metricType string, bucket time.Time) string {
	return fmt.Sprintf("%s/%s@%d", hostname, metricType, bucket.UnixMicro())
}

func sortResults(results []types.AggregateResult) {
	sort.Slice(results, func(i, j int) bool {
		if !results[i].BucketStart.Equal(results[j].BucketStart) {
			return results[i].BucketStart.Before(results[j].BucketStart)
		}
		return results[i].SeriesKey() < results[j].SeriesKey()
	})
}

// =============================================================================
// Store rollups
// =============================================================================

// RangeQuerier reads records by time range.
type RangeQuerier interface {
	QueryRange(ctx context.Context, start, end time.Time, metricType string) ([]types.MetricRecord, error)
}

// Rollup reads records in [start, end] of metricType (all types when
// empty) from q and aggregates them with m. Any aggregates already held by
// m are included in the result.
func Rollup(ctx context.Context, q RangeQuerier, m *Manager, start, end time.Time, metricType string) ([]types.AggregateResult, error) {
	records, err := q.QueryRange(ctx, start, end, metricType)
	if err != nil {
		return nil, err
	}
	m.ProcessBatch(records)
	return m.FlushAll(), nil
}
