// Package retention removes expired metric records on a schedule and prunes
// old archive files.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xtxerr/healthmon/internal/logging"
	storageconfig "github.com/xtxerr/healthmon/internal/storage/config"
	"github.com/xtxerr/healthmon/internal/store"
)

var log = logging.Component("retention")

// Cleaner is the part of the store the manager drives.
type Cleaner interface {
	CleanupWithArchive(ctx context.Context, retention time.Duration, a store.Archiver) (int64, error)
	CountExpired(ctx context.Context, retention time.Duration) (int64, error)
	Cutoff(retention time.Duration) (time.Time, error)
}

// Manager handles automatic cleanup of expired data.
type Manager struct {
	mu       sync.RWMutex
	store    Cleaner
	config   storageconfig.RetentionConfig
	archiver store.Archiver

	// archiveDir and archiveRetention drive archive file pruning. An empty
	// dir or zero retention disables it.
	archiveDir       string
	archiveRetention time.Duration

	now   func() time.Time
	stats ManagerStats
}

// ManagerStats holds manager statistics.
type ManagerStats struct {
	Runs           int64
	LastRunTime    time.Time
	LastDeleted    int64
	RecordsDeleted int64
	FilesDeleted   int64
	BytesFreed     int64
	Errors         int64
	LastError      error
}

// CleanupResult holds the result of a cleanup operation.
type CleanupResult struct {
	Cutoff       time.Time
	Deleted      int64
	DryRun       bool
	FilesDeleted int
	BytesFreed   int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithArchiver archives expired records before they are deleted.
func WithArchiver(a store.Archiver) Option {
	return func(m *Manager) {
		m.archiver = a
	}
}

// WithArchivePruning deletes archive files in dir whose cutoff is older
// than keep.
func WithArchivePruning(dir string, keep time.Duration) Option {
	return func(m *Manager) {
		m.archiveDir = dir
		m.archiveRetention = keep
	}
}

// WithClock replaces the wall clock used for archive pruning.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a new retention manager.
func New(s Cleaner, cfg storageconfig.RetentionConfig, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Period returns the configured retention period.
func (m *Manager) Period() time.Duration {
	return m.config.Period
}

// RunCleanup deletes expired records once, archiving them first when an
// archiver is set, then prunes expired archive files.
func (m *Manager) RunCleanup(ctx context.Context) (CleanupResult, error) {
	return m.runCleanup(ctx, m.config.Period)
}

// CleanupOlderThan is RunCleanup with an explicit retention period.
func (m *Manager) CleanupOlderThan(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	return m.runCleanup(ctx, retention)
}

func (m *Manager) runCleanup(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Runs++
	m.stats.LastRunTime = m.now()

	result, err := m.cleanup(ctx, retention)
	if err != nil {
		m.stats.Errors++
		m.stats.LastError = err
		return result, err
	}

	m.stats.LastDeleted = result.Deleted
	m.stats.RecordsDeleted += result.Deleted
	m.stats.FilesDeleted += int64(result.FilesDeleted)
	m.stats.BytesFreed += result.BytesFreed
	m.stats.LastError = nil
	return result, nil
}

func (m *Manager) cleanup(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	cutoff, err := m.store.Cutoff(retention)
	if err != nil {
		return CleanupResult{}, err
	}
	result := CleanupResult{Cutoff: cutoff}

	deleted, err := m.store.CleanupWithArchive(ctx, retention, m.archiver)
	if err != nil {
		return result, err
	}
	result.Deleted = deleted

	files, freed, err := m.pruneArchives(false)
	if err != nil {
		// Pruning failures do not fail the sweep.
		log.Warn("archive pruning failed", "dir", m.archiveDir, "error", err)
	}
	result.FilesDeleted = files
	result.BytesFreed = freed

	return result, nil
}

// DryRun reports what RunCleanup would delete without deleting anything.
func (m *Manager) DryRun(ctx context.Context) (CleanupResult, error) {
	return m.DryRunOlderThan(ctx, m.config.Period)
}

// DryRunOlderThan is DryRun with an explicit retention period.
func (m *Manager) DryRunOlderThan(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff, err := m.store.Cutoff(retention)
	if err != nil {
		return CleanupResult{}, err
	}

	n, err := m.store.CountExpired(ctx, retention)
	if err != nil {
		return CleanupResult{}, err
	}

	files, bytes, err := m.pruneArchives(true)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		Cutoff:       cutoff,
		Deleted:      n,
		DryRun:       true,
		FilesDeleted: files,
		BytesFreed:   bytes,
	}, nil
}

// Run sweeps once immediately and then every Interval until ctx is
// cancelled. Failed sweeps are logged and retried at the next tick.
func (m *Manager) Run(ctx context.Context) error {
	if !m.config.Enabled {
		log.Info("retention disabled")
		<-ctx.Done()
		return nil
	}

	interval := m.config.Interval
	if interval <= 0 {
		return fmt.Errorf("retention interval %v must be positive", interval)
	}

	log.Info("retention worker started", "period", m.config.Period, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.sweep(ctx)

		select {
		case <-ctx.Done():
			log.Info("retention worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	result, err := m.RunCleanup(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("cleanup failed", "error", err)
		}
		return
	}
	log.Debug("cleanup finished", "deleted", result.Deleted, "cutoff", result.Cutoff)
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// =============================================================================
// Archive files
// =============================================================================

// fileInfo holds information about a file.
type fileInfo struct {
	name string
	path string
	size int64
}

// pruneArchives removes archive files whose cutoff lies before now minus
// the archive retention.
func (m *Manager) pruneArchives(dryRun bool) (int, int64, error) {
	if m.archiveDir == "" || m.archiveRetention <= 0 {
		return 0, 0, nil
	}

	files, err := listFiles(m.archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("list archives: %w", err)
	}

	limit := m.now().Add(-m.archiveRetention)

	var (
		deleted int
		freed   int64
		errs    []string
	)
	for _, f := range files {
		cutoff, err := parseArchiveTime(f.name)
		if err != nil || !cutoff.Before(limit) {
			continue
		}
		if !dryRun {
			if err := os.Remove(f.path); err != nil {
				errs = append(errs, err.Error())
				continue
			}
		}
		deleted++
		freed += f.size
	}

	if len(errs) > 0 {
		return deleted, freed, fmt.Errorf("delete archives: %s", strings.Join(errs, "; "))
	}
	return deleted, freed, nil
}

// listFiles lists all Parquet files in a directory.
func listFiles(dir string) ([]fileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []fileInfo

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) != ".parquet" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, fileInfo{
			name: name,
			path: filepath.Join(dir, name),
			size: info.Size(),
		})
	}

	// Sort by name (oldest first)
	sort.Slice(files, func(i, j int) bool {
		return files[i].name < files[j].name
	})

	return files, nil
}

// parseArchiveTime extracts the cutoff from an archive file name of the
// form metrics_<20060102T150405Z>_<ids>.parquet.
func parseArchiveTime(name string) (time.Time, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) != 3 || parts[0] != "metrics" {
		return time.Time{}, fmt.Errorf("not an archive file: %s", name)
	}
	return time.Parse("20060102T150405Z", parts[1])
}

// DiskUsage holds disk usage information.
type DiskUsage struct {
	FileCount int
	TotalSize int64
}

// ArchiveUsage returns the number and total size of archive files in dir.
func ArchiveUsage(dir string) (DiskUsage, error) {
	files, err := listFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return DiskUsage{}, nil
		}
		return DiskUsage{}, err
	}

	var u DiskUsage
	for _, f := range files {
		u.FileCount++
		u.TotalSize += f.size
	}
	return u, nil
}

// String formats the usage for display.
func (u DiskUsage) String() string {
	return fmt.Sprintf("%d files, %s", u.FileCount, FormatBytes(u.TotalSize))
}

// FormatBytes formats bytes as human-readable string.
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
