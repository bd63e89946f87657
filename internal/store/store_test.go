package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/xtxerr/healthmon/internal/constants"
	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/storage/types"
	testutil "github.com/xtxerr/healthmon/internal/testing"
)

var t0 = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T, engine string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Engine = engine
	cfg.Path = filepath.Join(t.TempDir(), "metrics.db")
	cfg.WriteTimeout = 5 * time.Second
	return cfg
}

func openTestStore(t *testing.T, cfg Config, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return openTestStore(t, testConfig(t, constants.EngineSQLite), opts...)
}

func mustInsert(t *testing.T, s *Store, r types.Reading) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), r)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return id
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	if s.Engine() != constants.EngineSQLite {
		t.Errorf("expected engine sqlite, got %s", s.Engine())
	}
	if err := s.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = ""
	if _, err := Open(context.Background(), cfg); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}

	cfg = testConfig(t, "postgres")
	if _, err := Open(context.Background(), cfg); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "missing", "dir", "metrics.db")
	_, err := Open(context.Background(), cfg)
	if !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestInsertAndQueryRange(t *testing.T) {
	clock := testutil.NewClock(t0)
	s := newTestStore(t, WithClock(clock.Ticking(time.Second)))
	ctx := context.Background()

	metricTypes := []string{"cpu", "memory", "disk"}
	var ids []int64
	for i := 0; i < 100; i++ {
		id := mustInsert(t, s, testutil.Reading("web01", metricTypes[i%3], float64(i)))
		ids = append(ids, id)
	}

	all, err := s.QueryRange(ctx, t0, t0.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(all) != 100 {
		t.Fatalf("expected 100 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("records out of order at %d", i)
		}
		if all[i].ID <= all[i-1].ID {
			t.Fatalf("ids not increasing at %d: %d <= %d", i, all[i].ID, all[i-1].ID)
		}
	}

	counts := map[string]int{}
	for _, mt := range metricTypes {
		records, err := s.QueryRange(ctx, t0, t0.Add(time.Hour), mt)
		if err != nil {
			t.Fatalf("QueryRange(%s): %v", mt, err)
		}
		for _, r := range records {
			if r.MetricType != mt {
				t.Errorf("expected metric type %s, got %s", mt, r.MetricType)
			}
		}
		counts[mt] = len(records)
	}
	if diff := cmp.Diff(map[string]int{"cpu": 34, "memory": 33, "disk": 33}, counts); diff != "" {
		t.Errorf("count mismatch (-want +got):\n%s", diff)
	}

	// The payload round-trips with numbers as float64.
	if v, ok := all[42].Payload.Float("usage_percent"); !ok || v != 42 {
		t.Errorf("expected usage_percent 42, got %v (%v)", v, ok)
	}
	if all[42].ID != ids[42] {
		t.Errorf("expected id %d, got %d", ids[42], all[42].ID)
	}

	// Both bounds are inclusive: records 20 through 60.
	from, to := t0.Add(20*time.Second), t0.Add(60*time.Second)
	window, err := s.QueryRange(ctx, from, to, "")
	if err != nil {
		t.Fatalf("QueryRange(window): %v", err)
	}
	var got []int64
	for _, r := range window {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			t.Errorf("record %d at %v outside [%v, %v]", r.ID, r.Timestamp, from, to)
		}
		got = append(got, r.ID)
	}
	if diff := cmp.Diff(ids[20:61], got); diff != "" {
		t.Errorf("window ids mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertDefaults(t *testing.T) {
	s := newTestStore(t)

	mustInsert(t, s, types.Reading{
		Hostname:   "web01",
		MetricType: "gpu",
		Payload:    types.Payload{"temperature": 71},
	})
	mustInsert(t, s, types.Reading{
		Hostname:   "web01",
		MetricType: "gpu",
		Payload:    types.Payload{"temperature": 90},
		Status:     "CRITICAL",
		Source:     "nvidia-agent",
	})

	records, err := s.QueryLatest(context.Background(), "gpu", 10)
	if err != nil {
		t.Fatalf("QueryLatest: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	got := [][2]string{
		{records[0].Status, records[0].Source},
		{records[1].Status, records[1].Source},
	}
	want := [][2]string{
		{"CRITICAL", "nvidia-agent"},
		{types.DefaultStatus, types.DefaultSource},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status/source mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		reading types.Reading
		want    error
	}{
		{"empty hostname", types.Reading{MetricType: "cpu"}, errors.ErrInvalidHostname},
		{"bad hostname", types.Reading{Hostname: "a/b", MetricType: "cpu"}, errors.ErrInvalidHostname},
		{"empty metric type", types.Reading{Hostname: "web01"}, errors.ErrInvalidMetricType},
		{"nan payload", types.Reading{Hostname: "web01", MetricType: "cpu", Payload: types.Payload{"v": math.NaN()}}, errors.ErrSerialization},
		{"unsupported payload", types.Reading{Hostname: "web01", MetricType: "cpu", Payload: types.Payload{"v": struct{}{}}}, errors.ErrSerialization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Insert(ctx, tt.reading)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRecords != 0 {
		t.Errorf("rejected inserts must not persist, got %d records", stats.TotalRecords)
	}
}

func TestQueryRangeBounds(t *testing.T) {
	clock := testutil.NewClock(t0)
	s := newTestStore(t, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		clock.Set(t0.Add(time.Duration(i) * time.Minute))
		mustInsert(t, s, testutil.Reading("web01", "cpu", float64(i)))
	}

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"inclusive both ends", t0.Add(time.Minute), t0.Add(3 * time.Minute), 3},
		{"single instant", t0.Add(2 * time.Minute), t0.Add(2 * time.Minute), 1},
		{"sub-microsecond start excludes", t0.Add(2*time.Minute + time.Nanosecond), t0.Add(2 * time.Minute), 0},
		{"reversed", t0.Add(time.Hour), t0, 0},
		{"before data", t0.Add(-time.Hour), t0.Add(-time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := s.QueryRange(ctx, tt.start, tt.end, "cpu")
			if err != nil {
				t.Fatalf("QueryRange: %v", err)
			}
			if records == nil {
				t.Fatal("expected empty slice, got nil")
			}
			if len(records) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(records))
			}
		})
	}

	if _, err := s.QueryRange(ctx, time.Time{}, t0, ""); !errors.Is(err, errors.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for zero start, got %v", err)
	}
	if _, err := s.QueryRange(ctx, t0, time.Time{}, ""); !errors.Is(err, errors.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for zero end, got %v", err)
	}
}

func TestQueryLatest(t *testing.T) {
	clock := testutil.NewClock(t0)
	s := newTestStore(t, WithClock(clock.Now))
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 6; i++ {
		// Two records per instant exercise the id tie-break.
		clock.Set(t0.Add(time.Duration(i/2) * time.Second))
		mt := "cpu"
		if i == 5 {
			mt = "memory"
		}
		ids = append(ids, mustInsert(t, s, testutil.Reading("web01", mt, float64(i))))
	}

	latest, err := s.QueryLatest(ctx, "", 3)
	if err != nil {
		t.Fatalf("QueryLatest: %v", err)
	}
	var got []int64
	for _, r := range latest {
		got = append(got, r.ID)
	}
	if diff := cmp.Diff([]int64{ids[5], ids[4], ids[3]}, got); diff != "" {
		t.Errorf("latest ids mismatch (-want +got):\n%s", diff)
	}

	cpu, err := s.QueryLatest(ctx, "cpu", 100)
	if err != nil {
		t.Fatalf("QueryLatest: %v", err)
	}
	if len(cpu) != 5 {
		t.Errorf("expected 5 cpu records, got %d", len(cpu))
	}

	none, err := s.QueryLatest(ctx, "network", 10)
	if err != nil {
		t.Fatalf("QueryLatest: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no network records, got %d", len(none))
	}

	for _, limit := range []int{0, -1} {
		_, err := s.QueryLatest(ctx, "", limit)
		if !errors.Is(err, errors.ErrInvalidQuery) {
			t.Errorf("limit %d: expected ErrInvalidQuery, got %v", limit, err)
		}
	}
}

func TestCleanupBoundary(t *testing.T) {
	clock := testutil.NewClock(t0)
	s := newTestStore(t, WithClock(clock.Now))
	ctx := context.Background()

	retention := 7 * 24 * time.Hour
	offsets := []time.Duration{
		-10 * 24 * time.Hour,
		-retention - time.Microsecond,
		-retention, // exactly at the cutoff: kept
		-24 * time.Hour,
	}
	for _, off := range offsets {
		clock.Set(t0.Add(off))
		mustInsert(t, s, testutil.Reading("web01", "cpu", 1))
	}
	clock.Set(t0)

	expired, err := s.CountExpired(ctx, retention)
	if err != nil {
		t.Fatalf("CountExpired: %v", err)
	}
	if expired != 2 {
		t.Errorf("expected 2 expired, got %d", expired)
	}

	deleted, err := s.Cleanup(ctx, retention)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	remaining, err := s.QueryRange(ctx, t0.Add(-30*24*time.Hour), t0, "")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(remaining))
	}
	if !remaining[0].Timestamp.Equal(t0.Add(-retention)) {
		t.Errorf("expected boundary record kept, got %v", remaining[0].Timestamp)
	}

	// Nothing left to delete.
	deleted, err = s.Cleanup(ctx, retention)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deleted, got %d", deleted)
	}

	if _, err := s.Cleanup(ctx, -time.Hour); !errors.Is(err, errors.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for negative retention, got %v", err)
	}
}

func TestCleanupZeroRetention(t *testing.T) {
	clock := testutil.NewClock(t0)
	s := newTestStore(t, WithClock(clock.Now))

	mustInsert(t, s, testutil.Reading("web01", "cpu", 1))
	clock.Advance(time.Second)

	deleted, err := s.Cleanup(context.Background(), 0)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

type recordingArchiver struct {
	mu      sync.Mutex
	cutoff  time.Time
	records []types.MetricRecord
	err     error
}

func (a *recordingArchiver) Archive(_ context.Context, cutoff time.Time, records []types.MetricRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.cutoff = cutoff
	a.records = append(a.records, records...)
	return nil
}

func TestCleanupWithArchive(t *testing.T) {
	clock := testutil.NewClock(t0.Add(-48 * time.Hour))
	s := newTestStore(t, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustInsert(t, s, testutil.Reading("web01", "memory", float64(i)))
		clock.Advance(time.Minute)
	}
	clock.Set(t0)
	mustInsert(t, s, testutil.Reading("web01", "memory", 99))

	failing := &recordingArchiver{err: fmt.Errorf("disk full")}
	_, err := s.CleanupWithArchive(ctx, 24*time.Hour, failing)
	if !errors.Is(err, errors.ErrArchive) {
		t.Fatalf("expected ErrArchive, got %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRecords != 4 {
		t.Fatalf("failed archive must roll back, got %d records", stats.TotalRecords)
	}

	a := &recordingArchiver{}
	deleted, err := s.CleanupWithArchive(ctx, 24*time.Hour, a)
	if err != nil {
		t.Fatalf("CleanupWithArchive: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
	if len(a.records) != 3 {
		t.Fatalf("expected 3 archived, got %d", len(a.records))
	}
	if !a.cutoff.Equal(t0.Add(-24 * time.Hour)) {
		t.Errorf("unexpected cutoff %v", a.cutoff)
	}
	for i, r := range a.records {
		if v, _ := r.Payload.Float("usage_percent"); v != float64(i) {
			t.Errorf("archived record %d: expected %d, got %v", i, i, v)
		}
	}
}

func TestStats(t *testing.T) {
	clock := testutil.NewClock(t0)
	s := newTestStore(t, WithClock(clock.Ticking(time.Minute)))
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if empty.TotalRecords != 0 || len(empty.ByType) != 0 {
		t.Errorf("expected empty stats, got %+v", empty)
	}
	if empty.OldestRecord != nil || empty.NewestRecord != nil {
		t.Error("expected nil timestamps on empty store")
	}
	if empty.DBPath != s.Path() || empty.Engine != constants.EngineSQLite {
		t.Errorf("unexpected path/engine: %s %s", empty.DBPath, empty.Engine)
	}

	for _, mt := range []string{"cpu", "cpu", "disk"} {
		mustInsert(t, s, testutil.Reading("web01", mt, 1))
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRecords != 3 {
		t.Errorf("expected 3 records, got %d", stats.TotalRecords)
	}
	if diff := cmp.Diff(map[string]int64{"cpu": 2, "disk": 1}, stats.ByType); diff != "" {
		t.Errorf("by type mismatch (-want +got):\n%s", diff)
	}
	if stats.OldestRecord == nil || !stats.OldestRecord.Equal(t0) {
		t.Errorf("expected oldest %v, got %v", t0, stats.OldestRecord)
	}
	if stats.NewestRecord == nil || !stats.NewestRecord.Equal(t0.Add(2*time.Minute)) {
		t.Errorf("expected newest %v, got %v", t0.Add(2*time.Minute), stats.NewestRecord)
	}
}

func TestStatsConsistentUnderWrites(t *testing.T) {
	s := newTestStore(t)
	gt := testutil.NewGoroutineTest(t, 30*time.Second)

	done := make(chan struct{})
	gt.Go(func(ctx context.Context) error {
		defer close(done)
		for i := 0; i < 200; i++ {
			mt := []string{"cpu", "memory", "disk"}[i%3]
			if _, err := s.Insert(ctx, testutil.Reading("web01", mt, float64(i))); err != nil {
				return fmt.Errorf("insert %d: %w", i, err)
			}
		}
		return nil
	})
	gt.Go(func(ctx context.Context) error {
		for {
			stats, err := s.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			var sum int64
			for _, n := range stats.ByType {
				sum += n
			}
			if sum != stats.TotalRecords {
				return fmt.Errorf("total %d disagrees with by-type sum %d", stats.TotalRecords, sum)
			}
			select {
			case <-done:
				return nil
			default:
			}
		}
	})
	gt.Wait()

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRecords != 200 {
		t.Errorf("expected 200 records, got %d", stats.TotalRecords)
	}
}

func TestConcurrentWriters(t *testing.T) {
	const writers, perWriter = 8, 25

	s := newTestStore(t)
	gt := testutil.NewGoroutineTest(t, 30*time.Second)

	var mu sync.Mutex
	seen := make(map[int64]bool)

	for w := 0; w < writers; w++ {
		w := w
		gt.Go(func(ctx context.Context) error {
			for i := 0; i < perWriter; i++ {
				id, err := s.Insert(ctx, testutil.Reading(fmt.Sprintf("host%d", w), "cpu", float64(i)))
				if err != nil {
					return fmt.Errorf("writer %d insert %d: %w", w, i, err)
				}
				mu.Lock()
				if seen[id] {
					mu.Unlock()
					return fmt.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
			return nil
		})
	}
	gt.Wait()

	if len(seen) != writers*perWriter {
		t.Fatalf("expected %d ids, got %d", writers*perWriter, len(seen))
	}

	records, err := s.QueryRange(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Hour), "cpu")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(records) != writers*perWriter {
		t.Fatalf("expected %d records, got %d", writers*perWriter, len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].ID <= records[i-1].ID {
			t.Fatalf("ids not increasing in time order at %d", i)
		}
	}
}

func TestConcurrentProcesses(t *testing.T) {
	const stores, writers, perWriter = 2, 3, 15

	cfg := testConfig(t, constants.EngineSQLite)
	gt := testutil.NewGoroutineTest(t, 60*time.Second)

	var opened []*Store
	for i := 0; i < stores; i++ {
		// Separate Store values share nothing but the file, like separate
		// collector processes.
		opened = append(opened, openTestStore(t, cfg))
	}

	for i, s := range opened {
		for w := 0; w < writers; w++ {
			s, host := s, fmt.Sprintf("p%d-w%d", i, w)
			gt.Go(func(ctx context.Context) error {
				for k := 0; k < perWriter; k++ {
					if _, err := s.Insert(ctx, testutil.Reading(host, "memory", float64(k))); err != nil {
						return fmt.Errorf("%s: %w", host, err)
					}
				}
				return nil
			})
		}
	}
	gt.Wait()

	stats, err := opened[0].Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRecords != stores*writers*perWriter {
		t.Errorf("expected %d records, got %d", stores*writers*perWriter, stats.TotalRecords)
	}
}

func TestWriteGateTimeout(t *testing.T) {
	cfg := testConfig(t, constants.EngineSQLite)
	cfg.WriteTimeout = 50 * time.Millisecond
	s := openTestStore(t, cfg)

	// Hold the write token as a long-running writer would.
	s.gate <- struct{}{}
	defer func() { <-s.gate }()

	_, err := s.Insert(context.Background(), testutil.Reading("web01", "cpu", 1))
	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.IsRetriable(err) {
		t.Error("timeout should be retriable")
	}

	_, err = s.Cleanup(context.Background(), time.Hour)
	if !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("expected ErrTimeout from cleanup, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Insert(ctx, testutil.Reading("web01", "cpu", 1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIDsNeverReused(t *testing.T) {
	cfg := testConfig(t, constants.EngineSQLite)
	clock := testutil.NewClock(t0)

	s, err := Open(context.Background(), cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var last int64
	for i := 0; i < 3; i++ {
		last = mustInsert(t, s, testutil.Reading("web01", "cpu", 1))
	}
	clock.Advance(time.Hour)
	if _, err := s.Cleanup(context.Background(), 0); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s = openTestStore(t, cfg)
	id := mustInsert(t, s, testutil.Reading("web01", "cpu", 1))
	if id <= last {
		t.Errorf("expected id > %d after cleanup and reopen, got %d", last, id)
	}
}

func TestMigratesLegacySchema(t *testing.T) {
	cfg := testConfig(t, constants.EngineSQLite)

	// A database written before data_source and schema_version existed.
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			hostname TEXT NOT NULL,
			metric_type TEXT NOT NULL,
			metric_data TEXT NOT NULL,
			status TEXT
		)`)
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	_, err = db.Exec(`INSERT INTO metrics (timestamp, hostname, metric_type, metric_data, status)
		VALUES ('2026-01-15T10:00:00.123456', 'old-host', 'cpu', '{"usage_percent": 12.5}', 'OK')`)
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	db.Close()

	s := openTestStore(t, cfg)
	records, err := s.QueryLatest(context.Background(), "cpu", 10)
	if err != nil {
		t.Fatalf("QueryLatest: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.Source != types.DefaultSource {
		t.Errorf("expected migrated source %q, got %q", types.DefaultSource, r.Source)
	}
	if v, ok := r.Payload.Float("usage_percent"); !ok || v != 12.5 {
		t.Errorf("expected usage_percent 12.5, got %v (%v)", v, ok)
	}
	want := time.Date(2026, 1, 15, 10, 0, 0, 123456000, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, r.Timestamp)
	}

	// Reopening does not re-run migrations.
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	openTestStore(t, cfg)
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	ctx := context.Background()
	if _, err := s.Insert(ctx, testutil.Reading("web01", "cpu", 1)); !errors.Is(err, errors.ErrStoreClosed) {
		t.Errorf("Insert: expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.QueryLatest(ctx, "", 1); !errors.Is(err, errors.ErrStoreClosed) {
		t.Errorf("QueryLatest: expected ErrStoreClosed, got %v", err)
	}
	if err := s.Health(ctx); !errors.IsStoreError(err) {
		t.Errorf("Health: expected store error, got %v", err)
	}
}

func TestDuckDBEngine(t *testing.T) {
	clock := testutil.NewClock(t0.Add(-48 * time.Hour))
	cfg := testConfig(t, constants.EngineDuckDB)
	cfg.Path = filepath.Join(t.TempDir(), "metrics.duckdb")
	s := openTestStore(t, cfg, WithClock(clock.Now))
	ctx := context.Background()

	first := mustInsert(t, s, testutil.Reading("web01", "disk", 10))
	clock.Set(t0)
	second := mustInsert(t, s, types.Reading{
		Hostname:   "web01",
		MetricType: "disk",
		Payload:    types.Payload{"usage_percent": 20.0, "mount": "/"},
		Source:     "duck",
	})
	if second <= first {
		t.Errorf("expected increasing ids, got %d then %d", first, second)
	}

	records, err := s.QueryRange(ctx, t0.Add(-72*time.Hour), t0, "disk")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Source != types.DefaultSource || records[1].Source != "duck" {
		t.Errorf("unexpected sources: %s, %s", records[0].Source, records[1].Source)
	}

	deleted, err := s.Cleanup(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Engine != constants.EngineDuckDB || stats.TotalRecords != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
