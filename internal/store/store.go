// Package store provides durable, time-indexed persistence of metric
// records for the healthmon application.
//
// Records are appended by collectors, read back by time range or recency,
// and removed only by age-based cleanup. The default engine is SQLite in
// WAL mode, which lets several collector processes share one database
// file; DuckDB is available for single-process deployments.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/xtxerr/healthmon/config"
	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/logging"
	storageconfig "github.com/xtxerr/healthmon/internal/storage/config"
)

var log = logging.Component("store")

// =============================================================================
// Store Configuration
// =============================================================================

// Config holds store configuration options.
type Config struct {
	// Engine is sqlite or duckdb.
	Engine string

	// Path is the database file.
	Path string

	// WriteTimeout bounds how long a write waits for the write lock, both
	// inside the process and on the database file.
	WriteTimeout time.Duration

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:          config.DefaultEngine,
		Path:            config.DefaultDBPath,
		WriteTimeout:    config.DefaultWriteTimeout,
		MaxOpenConns:    config.DefaultMaxOpenConns,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// ConfigFrom builds a Config from the database section of the YAML
// configuration.
func ConfigFrom(c storageconfig.DatabaseConfig) Config {
	cfg := DefaultConfig()
	cfg.Engine = c.Engine
	cfg.Path = c.Path
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	if c.MaxOpenConns > 0 {
		cfg.MaxOpenConns = c.MaxOpenConns
	}
	return cfg
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for record timestamps and
// retention cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// =============================================================================
// Store
// =============================================================================

// Store provides database operations.
//
// Store is safe for concurrent use. Writes from one process are serialized
// through a single-slot gate; writes from other processes are serialized
// by the engine's file lock.
type Store struct {
	db      *sql.DB
	dialect dialect
	config  Config
	now     func() time.Time

	// gate holds one token while a write is in flight.
	gate chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database at cfg.Path and migrates it to the
// current schema.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.NewMissingField("database path")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultWriteTimeout
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = config.DefaultMaxOpenConns
	}

	d, err := dialectFor(cfg.Engine)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driverName(), d.dsn(cfg.Path, cfg.WriteTimeout))
	if err != nil {
		return nil, errors.Unavailable("open database", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Unavailable("ping database", err)
	}

	if err := runMigrations(pingCtx, db, d.migrations()); err != nil {
		db.Close()
		return nil, errors.Unavailable("migrate database", err)
	}

	s := &Store{
		db:      db,
		dialect: d,
		config:  cfg,
		now:     time.Now,
		gate:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	log.Debug("store opened", "path", cfg.Path, "engine", d.name())
	return s, nil
}

// Close closes the store. Calling Close more than once is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.config.Path
}

// Engine returns the name of the storage engine.
func (s *Store) Engine() string {
	return s.dialect.name()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.ErrStoreClosed
	}
	return nil
}

// clock returns the current time in UTC at storage precision.
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// =============================================================================
// Write Gate
// =============================================================================

// acquireWrite takes the write token, waiting at most WriteTimeout. The
// returned func releases it.
func (s *Store) acquireWrite(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	defer cancel()

	select {
	case s.gate <- struct{}{}:
		return func() { <-s.gate }, nil
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire write lock: %w", err)
		}
		return nil, fmt.Errorf("acquire write lock after %v: %w", s.config.WriteTimeout, errors.ErrTimeout)
	}
}

// =============================================================================
// Transaction Support
// =============================================================================

// TransactionContext executes fn within a database transaction.
//
// If fn returns an error or panics, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (s *Store) TransactionContext(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	// A cancelled context must not commit.
	if err := ctx.Err(); err != nil {
		tx.Rollback()
		return fmt.Errorf("context cancelled before commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// =============================================================================
// Health Check
// =============================================================================

// Health checks database connectivity.
func (s *Store) Health(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return classify(s.dialect, "health", err)
	}
	return nil
}
