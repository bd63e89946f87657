package types

import (
	"encoding/json"
	"sort"
	"time"
)

// Stats holds aggregate information about the whole store.
// On an empty store the counts are zero and both timestamps are nil.
type Stats struct {
	TotalRecords int64
	ByType       map[string]int64
	OldestRecord *time.Time
	NewestRecord *time.Time
	DBPath       string
	Engine       string
}

// IsEmpty returns true if the store holds no records.
func (s *Stats) IsEmpty() bool {
	return s.TotalRecords == 0
}

// Types returns the metric types present, sorted.
func (s *Stats) Types() []string {
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// MarshalJSON implements json.Marshaler.
func (s Stats) MarshalJSON() ([]byte, error) {
	byType := s.ByType
	if byType == nil {
		byType = map[string]int64{}
	}
	return json.Marshal(struct {
		TotalRecords int64            `json:"total_records"`
		ByType       map[string]int64 `json:"by_type"`
		OldestRecord *string          `json:"oldest_record"`
		NewestRecord *string          `json:"newest_record"`
		DBPath       string           `json:"db_path"`
		Engine       string           `json:"engine"`
	}{
		TotalRecords: s.TotalRecords,
		ByType:       byType,
		OldestRecord: formatOptional(s.OldestRecord),
		NewestRecord: formatOptional(s.NewestRecord),
		DBPath:       s.DBPath,
		Engine:       s.Engine,
	})
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTimestamp(*t)
	return &s
}
