package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xtxerr/healthmon/internal/errors"
)

// TimestampLayout is the persisted timestamp format. It is fixed width and
// always UTC, so comparing two formatted timestamps as strings gives the
// same answer as comparing the instants.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// DefaultSource is recorded when a collector does not identify itself.
const DefaultSource = "local"

// DefaultStatus is recorded when a collector does not report a status.
const DefaultStatus = "OK"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// timestampLayouts are accepted by ParseTimestamp, in order.
var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999", // naive ISO-8601, treated as UTC
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a query bound or a stored timestamp. Values without
// a zone are taken as UTC. Unparsable input is an ErrInvalidQuery.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.NewInvalidQuery("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.NewInvalidQuery(fmt.Sprintf("unparsable timestamp %q", s))
}

// Reading is the caller-supplied content of a new record.
type Reading struct {
	Hostname   string
	MetricType string
	Payload    Payload
	Status     string
	Source     string
}

// WithDefaults returns a copy with empty Status and Source replaced by
// their defaults.
func (r Reading) WithDefaults() Reading {
	if r.Status == "" {
		r.Status = DefaultStatus
	}
	if r.Source == "" {
		r.Source = DefaultSource
	}
	return r
}

// MetricRecord is a single persisted health reading. Records are never
// modified once written.
type MetricRecord struct {
	ID         int64
	Timestamp  time.Time
	Hostname   string
	MetricType string
	Payload    Payload
	Status     string
	Source     string
}

// Key returns the series identity of the record.
func (r *MetricRecord) Key() string {
	return r.Hostname + "/" + r.MetricType
}

// recordJSON is the boundary shape of a record.
type recordJSON struct {
	ID         int64   `json:"id"`
	Timestamp  string  `json:"timestamp"`
	Hostname   string  `json:"hostname"`
	MetricType string  `json:"metric_type"`
	Payload    Payload `json:"metric_data"`
	Status     string  `json:"status"`
	Source     string  `json:"data_source"`
}

// MarshalJSON implements json.Marshaler.
func (r MetricRecord) MarshalJSON() ([]byte, error) {
	payload := r.Payload
	if payload == nil {
		payload = Payload{}
	}
	return json.Marshal(recordJSON{
		ID:         r.ID,
		Timestamp:  FormatTimestamp(r.Timestamp),
		Hostname:   r.Hostname,
		MetricType: r.MetricType,
		Payload:    payload,
		Status:     r.Status,
		Source:     r.Source,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *MetricRecord) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*r = MetricRecord{
		ID:         raw.ID,
		Timestamp:  ts,
		Hostname:   raw.Hostname,
		MetricType: raw.MetricType,
		Payload:    raw.Payload,
		Status:     raw.Status,
		Source:     raw.Source,
	}
	return nil
}
