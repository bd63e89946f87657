// Package collector feeds readings from external samplers into the store
// on a fixed interval.
package collector

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/logging"
	"github.com/xtxerr/healthmon/internal/storage/buffer"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

var log = logging.Component("collector")

// Inserter persists one reading.
type Inserter interface {
	Insert(ctx context.Context, r types.Reading) (int64, error)
}

// Runner polls a Source every interval and inserts what it returns.
type Runner struct {
	source   Source
	store    Inserter
	interval time.Duration

	// pending holds readings whose insert failed with a retriable error.
	// They are retried ahead of the next cycle's readings.
	pending *buffer.RingBuffer

	cycles   atomic.Int64
	inserted atomic.Int64
	failed   atomic.Int64
}

// RunnerStats holds runner counters.
type RunnerStats struct {
	Cycles   int64
	Inserted int64
	Failed   int64
	Pending  int
	Dropped  int64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPendingCapacity bounds how many failed readings are kept for retry.
// When full, the oldest pending reading is dropped.
func WithPendingCapacity(n int) RunnerOption {
	return func(r *Runner) {
		r.pending = buffer.New(n)
	}
}

// NewRunner creates a runner. The interval must be positive.
func NewRunner(source Source, store Inserter, interval time.Duration, opts ...RunnerOption) (*Runner, error) {
	if interval <= 0 {
		return nil, errors.NewValidation("collector interval", fmt.Sprintf("%v must be positive", interval))
	}
	r := &Runner{
		source:   source,
		store:    store,
		interval: interval,
		pending:  buffer.New(buffer.DefaultCapacity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run collects once immediately and then every interval until ctx is
// cancelled. Collection and insert failures are logged and counted; only
// a store that has been closed stops the loop early.
func (r *Runner) Run(ctx context.Context) error {
	log.Info("collector started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Collect(ctx); errors.Is(err, errors.ErrStoreClosed) {
			return err
		}

		select {
		case <-ctx.Done():
			log.Info("collector stopped", "cycles", r.cycles.Load(), "inserted", r.inserted.Load())
			return nil
		case <-ticker.C:
		}
	}
}

// Collect runs one cycle and returns the number of readings inserted. The
// returned error joins every failure of the cycle.
func (r *Runner) Collect(ctx context.Context) (int, error) {
	r.cycles.Add(1)

	var (
		n    int
		errs []error
	)

	readings, err := r.source.Collect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("collect failed", "error", err)
		}
		r.failed.Add(1)
		errs = append(errs, err)
	}
	readings = append(r.pending.Drain(), readings...)

	for i, reading := range readings {
		id, err := r.store.Insert(ctx, reading)
		if err != nil {
			r.failed.Add(1)
			logging.WithContext(logging.ContextWithMetricType(
				logging.ContextWithHostname(ctx, reading.Hostname), reading.MetricType,
			)).Warn("insert failed", "error", err)
			errs = append(errs, fmt.Errorf("insert %s: %w", reading.MetricType, err))
			if errors.IsRetriable(err) {
				r.retry(reading)
			}
			if errors.Is(err, errors.ErrStoreClosed) || ctx.Err() != nil {
				for _, rest := range readings[i+1:] {
					r.retry(rest)
				}
				break
			}
			continue
		}
		n++
		log.Debug("reading stored", "id", id, "metric_type", reading.MetricType)
	}
	r.inserted.Add(int64(n))

	return n, errors.Join(errs...)
}

func (r *Runner) retry(reading types.Reading) {
	if !r.pending.PushOverwrite(reading) {
		log.Warn("pending buffer full, dropped oldest reading", "capacity", r.pending.Cap())
	}
}

// Stats returns the runner counters.
func (r *Runner) Stats() RunnerStats {
	bs := r.pending.Stats()
	return RunnerStats{
		Cycles:   r.cycles.Load(),
		Inserted: r.inserted.Load(),
		Failed:   r.failed.Load(),
		Pending:  bs.Count,
		Dropped:  bs.DropCount,
	}
}
