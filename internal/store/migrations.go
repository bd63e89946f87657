package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xtxerr/healthmon/internal/errors"
)

// migration is one schema version. Versions are applied in order, each in
// its own transaction, and recorded in schema_version.
type migration struct {
	description string
	statements  []string

	// skipIf reports whether the change is already in place. Databases
	// created before schema_version existed may already have it.
	skipIf func(ctx context.Context, tx *sql.Tx) (bool, error)
}

func columnExists(table, column string) func(ctx context.Context, tx *sql.Tx) (bool, error) {
	return func(ctx context.Context, tx *sql.Tx) (bool, error) {
		var n int
		query := fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = '%s'`, table, column)
		err := tx.QueryRowContext(ctx, query).Scan(&n)
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}

// runMigrations brings the schema up to the latest version.
func runMigrations(ctx context.Context, db *sql.DB, migrations []migration) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		if err := applyMigration(ctx, db, i+1, migrations[i]); err != nil {
			return fmt.Errorf("%w: version %d (%s): %w", errors.ErrMigration, i+1, migrations[i].description, err)
		}
		log.Info("schema migrated", "version", i+1, "change", migrations[i].description)
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	skip := false
	if m.skipIf != nil {
		if skip, err = m.skipIf(ctx, tx); err != nil {
			return err
		}
	}

	if !skip {
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}

	return tx.Commit()
}
