package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// RowGroupSize is the maximum number of rows buffered before a row
	// group is flushed.
	RowGroupSize int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
)

// String returns the configuration name of the codec.
func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:  CompressionZstd,
		RowGroupSize: 100000,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) (CompressionType, error) {
	switch s {
	case "zstd", "":
		return CompressionZstd, nil
	case "snappy":
		return CompressionSnappy, nil
	case "none":
		return CompressionNone, nil
	default:
		return CompressionNone, errors.NewValidation("compression", fmt.Sprintf("unknown algorithm %q", s))
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	default:
		return &parquet.Uncompressed
	}
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("writer is closed")

// =============================================================================
// Rows
// =============================================================================

// RecordRow represents a metric record in Parquet format. The payload is
// kept in its stored JSON form so archives can be loaded back without
// knowing each metric type's fields.
type RecordRow struct {
	ID          int64  `parquet:"id"`
	TimestampUs int64  `parquet:"timestamp_us"`
	Hostname    string `parquet:"hostname,dict"`
	MetricType  string `parquet:"metric_type,dict"`
	MetricData  string `parquet:"metric_data"`
	Status      string `parquet:"status,dict"`
	DataSource  string `parquet:"data_source,dict"`
}

// AggregateRow represents a rollup bucket in Parquet format.
type AggregateRow struct {
	Hostname    string   `parquet:"hostname,dict"`
	MetricType  string   `parquet:"metric_type,dict"`
	Key         string   `parquet:"key,dict"`
	BucketStart int64    `parquet:"bucket_start"`
	BucketEnd   int64    `parquet:"bucket_end"`
	Count       int64    `parquet:"count"`
	Sum         float64  `parquet:"sum"`
	Min         float64  `parquet:"min"`
	Max         float64  `parquet:"max"`
	Avg         float64  `parquet:"avg"`
	P50         *float64 `parquet:"p50,optional"`
	P90         *float64 `parquet:"p90,optional"`
	P95         *float64 `parquet:"p95,optional"`
	P99         *float64 `parquet:"p99,optional"`
	First       int64    `parquet:"first_ts"`
	Last        int64    `parquet:"last_ts"`
}

// RecordToRow converts a MetricRecord to a RecordRow.
func RecordToRow(r *types.MetricRecord) (RecordRow, error) {
	data, err := types.EncodePayload(r.Payload)
	if err != nil {
		return RecordRow{}, err
	}
	return RecordRow{
		ID:          r.ID,
		TimestampUs: r.Timestamp.UnixMicro(),
		Hostname:    r.Hostname,
		MetricType:  r.MetricType,
		MetricData:  string(data),
		Status:      r.Status,
		DataSource:  r.Source,
	}, nil
}

// RowToRecord converts a RecordRow back to a MetricRecord.
func RowToRecord(row *RecordRow) (types.MetricRecord, error) {
	payload, err := types.DecodePayload([]byte(row.MetricData))
	if err != nil {
		return types.MetricRecord{}, fmt.Errorf("record %d: %w", row.ID, err)
	}
	return types.MetricRecord{
		ID:         row.ID,
		Timestamp:  time.UnixMicro(row.TimestampUs).UTC(),
		Hostname:   row.Hostname,
		MetricType: row.MetricType,
		Payload:    payload,
		Status:     row.Status,
		Source:     row.DataSource,
	}, nil
}

// AggregateToRow converts an AggregateResult to an AggregateRow.
func AggregateToRow(a *types.AggregateResult) AggregateRow {
	return AggregateRow{
		Hostname:    a.Hostname,
		MetricType:  a.MetricType,
		Key:         a.Key,
		BucketStart: a.BucketStart.UnixMicro(),
		BucketEnd:   a.BucketEnd.UnixMicro(),
		Count:       a.Count,
		Sum:         a.Sum,
		Min:         a.Min,
		Max:         a.Max,
		Avg:         a.Avg,
		P50:         a.P50,
		P90:         a.P90,
		P95:         a.P95,
		P99:         a.P99,
		First:       a.First.UnixMicro(),
		Last:        a.Last.UnixMicro(),
	}
}

// RowToAggregate converts an AggregateRow to an AggregateResult.
func RowToAggregate(r *AggregateRow) types.AggregateResult {
	return types.AggregateResult{
		Hostname:    r.Hostname,
		MetricType:  r.MetricType,
		Key:         r.Key,
		BucketStart: time.UnixMicro(r.BucketStart).UTC(),
		BucketEnd:   time.UnixMicro(r.BucketEnd).UTC(),
		Count:       r.Count,
		Sum:         r.Sum,
		Min:         r.Min,
		Max:         r.Max,
		Avg:         r.Avg,
		P50:         r.P50,
		P90:         r.P90,
		P95:         r.P95,
		P99:         r.P99,
		First:       time.UnixMicro(r.First).UTC(),
		Last:        time.UnixMicro(r.Last).UTC(),
	}
}

// =============================================================================
// Writers
// =============================================================================

// RecordWriter writes metric records to a Parquet file.
type RecordWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *parquet.GenericWriter[RecordRow]
	path   string
	count  int64
	closed bool
}

// NewRecordWriter creates the file at path, replacing any existing file.
func NewRecordWriter(path string, opts Options) (*RecordWriter, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}

	w := parquet.NewGenericWriter[RecordRow](f, writerOptions(opts)...)

	return &RecordWriter{
		file:   f,
		writer: w,
		path:   path,
	}, nil
}

// Write appends records to the file.
func (w *RecordWriter) Write(records []types.MetricRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]RecordRow, len(records))
	for i := range records {
		row, err := RecordToRow(&records[i])
		if err != nil {
			return err
		}
		rows[i] = row
	}

	n, err := w.writer.Write(rows)
	w.count += int64(n)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (w *RecordWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	return closeWriter(w.writer, w.file)
}

// RowCount returns the number of rows written.
func (w *RecordWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the file path.
func (w *RecordWriter) Path() string {
	return w.path
}

// AggregateWriter writes rollup buckets to a Parquet file.
type AggregateWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *parquet.GenericWriter[AggregateRow]
	path   string
	count  int64
	closed bool
}

// NewAggregateWriter creates the file at path, replacing any existing file.
func NewAggregateWriter(path string, opts Options) (*AggregateWriter, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}

	w := parquet.NewGenericWriter[AggregateRow](f, writerOptions(opts)...)

	return &AggregateWriter{
		file:   f,
		writer: w,
		path:   path,
	}, nil
}

// Write appends aggregates to the file.
func (w *AggregateWriter) Write(aggregates []types.AggregateResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]AggregateRow, len(aggregates))
	for i := range aggregates {
		rows[i] = AggregateToRow(&aggregates[i])
	}

	n, err := w.writer.Write(rows)
	w.count += int64(n)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (w *AggregateWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	return closeWriter(w.writer, w.file)
}

// RowCount returns the number of rows written.
func (w *AggregateWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the file path.
func (w *AggregateWriter) Path() string {
	return w.path
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return f, nil
}

func writerOptions(opts Options) []parquet.WriterOption {
	wopts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
		parquet.CreatedBy("healthmon", "", ""),
	}
	if opts.RowGroupSize > 0 {
		wopts = append(wopts, parquet.MaxRowsPerRowGroup(int64(opts.RowGroupSize)))
	}
	return wopts
}

type flushCloser interface {
	Close() error
}

func closeWriter(w flushCloser, f *os.File) error {
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	return f.Close()
}
