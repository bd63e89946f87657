package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/logging"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

var log = logging.Component("parquet")

// archiveTimeLayout names archive files after the cleanup cutoff.
const archiveTimeLayout = "20060102T150405Z"

// Archiver writes records removed by retention cleanup to Parquet files in
// a directory. Each cleanup produces one file.
type Archiver struct {
	dir  string
	opts Options
}

// NewArchiver returns an Archiver writing into dir.
func NewArchiver(dir string, opts Options) *Archiver {
	return &Archiver{dir: dir, opts: opts}
}

// Dir returns the archive directory.
func (a *Archiver) Dir() string {
	return a.dir
}

// Archive writes records to a new file. The file appears under its final
// name only after it is completely written, so a failed archive leaves no
// partial file behind.
func (a *Archiver) Archive(ctx context.Context, cutoff time.Time, records []types.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(a.dir, archiveName(cutoff, records))
	tmp := path + ".tmp"

	w, err := NewRecordWriter(tmp, a.opts)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrArchive, err)
	}
	if err := w.Write(records); err != nil {
		w.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", errors.ErrArchive, err)
	}
	if err := w.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", errors.ErrArchive, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename archive: %w", errors.ErrArchive, err)
	}

	log.Info("records archived", "path", path, "records", len(records), "compression", a.opts.Compression)
	return nil
}

// Files lists the archive files in the directory, oldest cutoff first.
func (a *Archiver) Files() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		files = append(files, filepath.Join(a.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// archiveName is metrics_<cutoff>_<first id>-<last id>.parquet.
func archiveName(cutoff time.Time, records []types.MetricRecord) string {
	first, last := records[0].ID, records[0].ID
	for _, r := range records[1:] {
		if r.ID < first {
			first = r.ID
		}
		if r.ID > last {
			last = r.ID
		}
	}
	return fmt.Sprintf("metrics_%s_%d-%d.parquet", cutoff.UTC().Format(archiveTimeLayout), first, last)
}
