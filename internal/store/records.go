package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/storage/types"
	"github.com/xtxerr/healthmon/internal/validation"
)

const recordColumns = `id, timestamp, hostname, metric_type, metric_data, status, data_source`

// Insert validates and appends one record and returns its id. The row is
// committed when Insert returns. The timestamp is assigned here, while the
// write token is held, so ids and timestamps from one process grow
// together.
func (s *Store) Insert(ctx context.Context, r types.Reading) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	if err := validation.ValidateHostname(r.Hostname); err != nil {
		return 0, err
	}
	if err := validation.ValidateMetricType(r.MetricType); err != nil {
		return 0, err
	}
	if err := validation.ValidateSource(r.Source); err != nil {
		return 0, err
	}
	if err := validation.ValidateStatus(r.Status); err != nil {
		return 0, err
	}

	r = r.WithDefaults()

	payload, err := types.EncodePayload(r.Payload)
	if err != nil {
		return 0, err
	}

	release, err := s.acquireWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	ts := types.FormatTimestamp(s.clock())

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO metrics (timestamp, hostname, metric_type, metric_data, status, data_source)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, ts, r.Hostname, r.MetricType, string(payload), r.Status, r.Source).Scan(&id)
	if err != nil {
		return 0, classify(s.dialect, "insert record", err)
	}

	log.Debug("record inserted", "id", id, "hostname", r.Hostname, "metric_type", r.MetricType)
	return id, nil
}

// QueryRange returns records with start <= timestamp <= end, oldest first,
// ties broken by id. An empty metricType matches every type. A reversed
// range yields no records.
func (s *Store) QueryRange(ctx context.Context, start, end time.Time, metricType string) ([]types.MetricRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("range bounds must be set: %w: %w", errors.ErrInvalidQuery, errors.ErrInvalidRange)
	}
	if start.After(end) {
		return []types.MetricRecord{}, nil
	}

	// Stored timestamps have microsecond precision; round the lower bound
	// up so a record just before start is not matched.
	if t := start.Truncate(time.Microsecond); t.Before(start) {
		start = t.Add(time.Microsecond)
	}

	query := `SELECT ` + recordColumns + ` FROM metrics WHERE timestamp >= ? AND timestamp <= ?`
	args := []any{types.FormatTimestamp(start), types.FormatTimestamp(end)}

	if metricType != "" {
		query += ` AND metric_type = ?`
		args = append(args, metricType)
	}
	query += ` ORDER BY timestamp, id`

	return s.queryRecords(ctx, "query range", query, args...)
}

// QueryLatest returns at most limit records, newest first, ties broken by
// descending id. An empty metricType matches every type.
func (s *Store) QueryLatest(ctx context.Context, metricType string, limit int) ([]types.MetricRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit %d must be positive: %w: %w", limit, errors.ErrInvalidQuery, errors.ErrInvalidLimit)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + recordColumns + ` FROM metrics`)
	args := make([]any, 0, 2)

	if metricType != "" {
		b.WriteString(` WHERE metric_type = ?`)
		args = append(args, metricType)
	}
	b.WriteString(` ORDER BY timestamp DESC, id DESC LIMIT ?`)
	args = append(args, limit)

	return s.queryRecords(ctx, "query latest", b.String(), args...)
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]types.MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(s.dialect, op, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, classify(s.dialect, op, err)
	}
	return records, nil
}

func scanRecords(rows *sql.Rows) ([]types.MetricRecord, error) {
	records := make([]types.MetricRecord, 0)

	for rows.Next() {
		var (
			r       types.MetricRecord
			ts      string
			payload string
			status  sql.NullString
			source  sql.NullString
		)
		if err := rows.Scan(&r.ID, &ts, &r.Hostname, &r.MetricType, &payload, &status, &source); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		t, err := types.ParseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		r.Timestamp = t

		p, err := types.DecodePayload([]byte(payload))
		if err != nil {
			// Rows written by other tools may hold JSON the codec rejects.
			// The record is still returned, without measurements.
			log.Warn("undecodable payload", "id", r.ID, "error", err)
			p = types.Payload{}
		}
		r.Payload = p

		r.Status = status.String
		r.Source = source.String
		if !source.Valid {
			r.Source = types.DefaultSource
		}

		records = append(records, r)
	}

	return records, rows.Err()
}
