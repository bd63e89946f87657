package store

import (
	"context"
	"database/sql"

	"github.com/xtxerr/healthmon/internal/storage/types"
)

// Stats returns record counts overall and per metric type, and the oldest
// and newest timestamps. Both timestamps are nil on an empty store.
func (s *Store) Stats(ctx context.Context) (types.Stats, error) {
	stats := types.Stats{
		ByType: make(map[string]int64),
		DBPath: s.config.Path,
		Engine: s.dialect.name(),
	}

	if err := s.checkOpen(); err != nil {
		return stats, err
	}

	// One transaction gives the counts and the time span the same snapshot.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, classify(s.dialect, "begin stats", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT metric_type, COUNT(*) FROM metrics GROUP BY metric_type`)
	if err != nil {
		return stats, classify(s.dialect, "count by type", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			metricType string
			count      int64
		)
		if err := rows.Scan(&metricType, &count); err != nil {
			return stats, classify(s.dialect, "count by type", err)
		}
		stats.ByType[metricType] = count
		stats.TotalRecords += count
	}
	if err := rows.Err(); err != nil {
		return stats, classify(s.dialect, "count by type", err)
	}
	rows.Close()

	var oldest, newest sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM metrics`).Scan(&oldest, &newest); err != nil {
		return stats, classify(s.dialect, "time span", err)
	}
	if err := tx.Commit(); err != nil {
		return stats, classify(s.dialect, "commit stats", err)
	}

	if oldest.Valid {
		t, err := types.ParseTimestamp(oldest.String)
		if err != nil {
			return stats, classify(s.dialect, "time span", err)
		}
		stats.OldestRecord = &t
	}
	if newest.Valid {
		t, err := types.ParseTimestamp(newest.String)
		if err != nil {
			return stats, classify(s.dialect, "time span", err)
		}
		stats.NewestRecord = &t
	}

	return stats, nil
}
