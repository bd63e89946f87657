package parquet

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

// readBatch is the number of rows decoded per Read call.
const readBatch = 1024

// RecordReader reads metric records from a Parquet file.
type RecordReader struct {
	file   *os.File
	reader *parquet.GenericReader[RecordRow]
	path   string
}

// NewRecordReader opens a record archive.
func NewRecordReader(path string) (*RecordReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	reader := parquet.NewGenericReader[RecordRow](f, parquet.ReadBufferSize(1024*1024))

	return &RecordReader{
		file:   f,
		reader: reader,
		path:   path,
	}, nil
}

// Read reads up to n records. It returns io.EOF once the file is exhausted.
func (r *RecordReader) Read(n int) ([]types.MetricRecord, error) {
	rows := make([]RecordRow, n)
	count, err := r.reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if count == 0 && err != nil {
		return nil, io.EOF
	}

	records := make([]types.MetricRecord, 0, count)
	for i := 0; i < count; i++ {
		rec, convErr := RowToRecord(&rows[i])
		if convErr != nil {
			return nil, convErr
		}
		records = append(records, rec)
	}

	return records, nil
}

// ReadAll reads every remaining record.
func (r *RecordReader) ReadAll() ([]types.MetricRecord, error) {
	all := make([]types.MetricRecord, 0, r.reader.NumRows())
	for {
		batch, err := r.Read(readBatch)
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
}

// NumRows returns the total number of rows in the file.
func (r *RecordReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *RecordReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns the file path.
func (r *RecordReader) Path() string {
	return r.path
}

// ReadRecords loads a whole record archive.
func ReadRecords(path string) ([]types.MetricRecord, error) {
	r, err := NewRecordReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}

// ReadAggregates loads a whole rollup export.
func ReadAggregates(path string) ([]types.AggregateResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[AggregateRow](f)
	defer reader.Close()

	results := make([]types.AggregateResult, 0, reader.NumRows())
	rows := make([]AggregateRow, readBatch)
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			results = append(results, RowToAggregate(&rows[i]))
		}
		if errors.Is(err, io.EOF) {
			return results, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return results, nil
		}
	}
}

// FileInfo holds information about a Parquet file.
type FileInfo struct {
	Path    string
	Size    int64
	NumRows int64
}

// GetFileInfo returns information about a Parquet file.
func GetFileInfo(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	return &FileInfo{
		Path:    path,
		Size:    stat.Size(),
		NumRows: pf.NumRows(),
	}, nil
}
