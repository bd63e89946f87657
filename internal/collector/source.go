package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/xtxerr/healthmon/internal/constants"
	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/storage/types"
)

// Source produces the readings of one collection cycle. Returning no
// readings and a nil error means there is nothing new.
type Source interface {
	Collect(ctx context.Context) ([]types.Reading, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]types.Reading, error)

// Collect calls f(ctx).
func (f SourceFunc) Collect(ctx context.Context) ([]types.Reading, error) {
	return f(ctx)
}

// usageAliases are payload fields copied to usage_percent when a snapshot
// does not carry it, in order of preference.
var usageAliases = []string{"percent", "usage"}

// FileSource reads the JSON snapshot an external sampler rewrites in place:
//
//	{"timestamp": "...", "cpu": {"usage": 12.5, "cores": 8}, "memory": {...}}
//
// Every top-level object becomes one reading whose metric type is the
// field name. A snapshot whose timestamp has not changed since the last
// read yields no readings.
type FileSource struct {
	path     string
	hostname string
	source   string

	mu   sync.Mutex
	last string
}

// NewFileSource returns a FileSource for the snapshot at path.
func NewFileSource(path, hostname, source string) *FileSource {
	return &FileSource{path: path, hostname: hostname, source: source}
}

// Path returns the snapshot file path.
func (f *FileSource) Path() string {
	return f.path
}

// Collect implements Source.
func (f *FileSource) Collect(ctx context.Context) ([]types.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	stamp, readings, err := ParseSnapshot(data, f.hostname, f.source)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if stamp != "" && stamp == f.last {
		return nil, nil
	}
	f.last = stamp
	return readings, nil
}

// ParseSnapshot decodes a snapshot into readings ordered by metric type. It
// returns the snapshot's timestamp field, empty when absent. Top-level
// fields that are not objects are ignored.
func ParseSnapshot(data []byte, hostname, source string) (string, []types.Reading, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, errors.NewSerialization("decode snapshot", err)
	}

	var stamp string
	if ts, ok := raw["timestamp"]; ok {
		// A non-string timestamp is treated as absent.
		_ = json.Unmarshal(ts, &stamp)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		if name != "timestamp" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	readings := make([]types.Reading, 0, len(names))
	for _, name := range names {
		var payload types.Payload
		if err := json.Unmarshal(raw[name], &payload); err != nil || payload == nil {
			continue
		}
		normalize(payload)

		readings = append(readings, types.Reading{
			Hostname:   hostname,
			MetricType: name,
			Payload:    payload,
			Status:     constants.StatusOK,
			Source:     source,
		})
	}
	return stamp, readings, nil
}

func normalize(p types.Payload) {
	if _, ok := p.Float(constants.KeyUsagePercent); ok {
		return
	}
	for _, alias := range usageAliases {
		if v, ok := p.Float(alias); ok {
			p[constants.KeyUsagePercent] = v
			return
		}
	}
}
