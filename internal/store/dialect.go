package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xtxerr/healthmon/internal/constants"
	"github.com/xtxerr/healthmon/internal/errors"
)

// dialect isolates what differs between the supported engines: driver
// name, connection string, schema DDL and error classification.
type dialect interface {
	name() string
	driverName() string
	dsn(path string, busyTimeout time.Duration) string
	migrations() []migration
	// transient reports whether err is lock contention with another writer.
	transient(err error) bool
}

func dialectFor(engine string) (dialect, error) {
	switch engine {
	case constants.EngineSQLite, "":
		return sqliteDialect{}, nil
	case constants.EngineDuckDB:
		return duckdbDialect{}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q: %w", engine, errors.ErrInvalidConfig)
	}
}

// =============================================================================
// SQLite
// =============================================================================

// sqliteDialect is the default engine. WAL lets readers run alongside the
// writer; busy_timeout makes a second process wait for the write lock
// instead of failing immediately.
type sqliteDialect struct{}

func (sqliteDialect) name() string       { return constants.EngineSQLite }
func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) dsn(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func (sqliteDialect) migrations() []migration {
	return []migration{
		{
			description: "create metrics table",
			statements: []string{`
				CREATE TABLE IF NOT EXISTS metrics (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					timestamp   TEXT NOT NULL,
					hostname    TEXT NOT NULL,
					metric_type TEXT NOT NULL,
					metric_data TEXT NOT NULL,
					status      TEXT
				)`,
			},
		},
		{
			description: "add data_source column",
			skipIf:      columnExists("metrics", "data_source"),
			statements: []string{
				`ALTER TABLE metrics ADD COLUMN data_source TEXT DEFAULT 'local'`,
			},
		},
		{
			description: "create indexes",
			statements: []string{
				`CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON metrics(timestamp)`,
				`CREATE INDEX IF NOT EXISTS idx_metrics_type_timestamp ON metrics(metric_type, timestamp)`,
				`CREATE INDEX IF NOT EXISTS idx_metrics_source_timestamp ON metrics(data_source, timestamp)`,
			},
		},
	}
}

func (sqliteDialect) transient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	// Extended result codes carry the primary code in the low byte.
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// =============================================================================
// DuckDB
// =============================================================================

// duckdbDialect stores records in a DuckDB file. DuckDB holds an exclusive
// file lock, so only one process can open the store at a time.
type duckdbDialect struct{}

func (duckdbDialect) name() string       { return constants.EngineDuckDB }
func (duckdbDialect) driverName() string { return "duckdb" }

func (duckdbDialect) dsn(path string, _ time.Duration) string {
	return path
}

// The unique id index is created with the other indexes: DuckDB refuses to
// ALTER a table that already has indexes depending on it.
func (duckdbDialect) migrations() []migration {
	return []migration{
		{
			description: "create metrics table",
			statements: []string{
				`CREATE SEQUENCE IF NOT EXISTS metrics_id_seq START 1`,
				`CREATE TABLE IF NOT EXISTS metrics (
					id          BIGINT NOT NULL DEFAULT nextval('metrics_id_seq'),
					timestamp   VARCHAR NOT NULL,
					hostname    VARCHAR NOT NULL,
					metric_type VARCHAR NOT NULL,
					metric_data VARCHAR NOT NULL,
					status      VARCHAR
				)`,
			},
		},
		{
			description: "add data_source column",
			skipIf:      columnExists("metrics", "data_source"),
			statements: []string{
				`ALTER TABLE metrics ADD COLUMN data_source VARCHAR DEFAULT 'local'`,
			},
		},
		{
			description: "create indexes",
			statements: []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_metrics_id ON metrics(id)`,
				`CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON metrics(timestamp)`,
				`CREATE INDEX IF NOT EXISTS idx_metrics_type_timestamp ON metrics(metric_type, timestamp)`,
				`CREATE INDEX IF NOT EXISTS idx_metrics_source_timestamp ON metrics(data_source, timestamp)`,
			},
		},
	}
}

func (duckdbDialect) transient(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not set lock") ||
		strings.Contains(msg, "conflict")
}

// classify maps a driver error to the store's error taxonomy.
func classify(d dialect, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || d.transient(err) {
		return fmt.Errorf("%s: %w: %v", op, errors.ErrTimeout, err)
	}
	return errors.Unavailable(op, err)
}
