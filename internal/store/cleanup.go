package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

// Archiver receives the records a cleanup is about to delete. If Archive
// fails the cleanup is rolled back and nothing is deleted.
type Archiver interface {
	Archive(ctx context.Context, cutoff time.Time, records []types.MetricRecord) error
}

// Cutoff returns the retention boundary for now. Records strictly older
// than the cutoff are expired.
func (s *Store) Cutoff(retention time.Duration) (time.Time, error) {
	if retention < 0 {
		return time.Time{}, fmt.Errorf("retention %v must not be negative: %w", retention, errors.ErrInvalidQuery)
	}
	return s.clock().Add(-retention), nil
}

// Cleanup deletes every record older than now - retention and returns the
// number deleted. Zero means there was nothing to delete.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.CleanupWithArchive(ctx, retention, nil)
}

// CleanupWithArchive is Cleanup with the expired records handed to the
// archiver first, inside the same transaction. A nil archiver skips
// archiving.
func (s *Store) CleanupWithArchive(ctx context.Context, retention time.Duration, a Archiver) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	release, err := s.acquireWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	cutoff, err := s.Cutoff(retention)
	if err != nil {
		return 0, err
	}
	bound := types.FormatTimestamp(cutoff)

	var deleted int64
	err = s.TransactionContext(ctx, func(tx *sql.Tx) error {
		if a != nil {
			rows, err := tx.QueryContext(ctx,
				`SELECT `+recordColumns+` FROM metrics WHERE timestamp < ? ORDER BY timestamp, id`, bound)
			if err != nil {
				return classify(s.dialect, "select expired", err)
			}
			expired, err := scanRecords(rows)
			rows.Close()
			if err != nil {
				return classify(s.dialect, "select expired", err)
			}

			if len(expired) > 0 {
				if err := a.Archive(ctx, cutoff, expired); err != nil {
					return fmt.Errorf("%w: %w", errors.ErrArchive, err)
				}
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM metrics WHERE timestamp < ?`, bound)
		if err != nil {
			return classify(s.dialect, "delete expired", err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return classify(s.dialect, "delete expired", err)
		}
		return nil
	})
	if err != nil {
		if errors.IsRetriable(err) || errors.IsStoreError(err) || errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, classify(s.dialect, "cleanup", err)
	}

	if deleted > 0 {
		log.Info("expired records deleted", "count", deleted, "cutoff", bound)
	}
	return deleted, nil
}

// CountExpired returns how many records a cleanup with the given retention
// would delete, without deleting them.
func (s *Store) CountExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	cutoff, err := s.Cutoff(retention)
	if err != nil {
		return 0, err
	}

	var n int64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM metrics WHERE timestamp < ?`, types.FormatTimestamp(cutoff),
	).Scan(&n)
	if err != nil {
		return 0, classify(s.dialect, "count expired", err)
	}
	return n, nil
}
