package types

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtxerr/healthmon/internal/errors"
)

// Payload is the measurement body of a record: metric-specific fields such
// as usage_percent or bytes_sent. The store treats it as opaque; readers
// extract numbers with Float.
//
// Values must be representable as a protobuf Value: nil, bool, numbers,
// strings, and nested []any / map[string]any of the same.
type Payload map[string]any

// Float returns payload[key] as a float64. It reports false when the key is
// absent, the value is not a number, or the number is not finite. Booleans
// and numeric strings are not numbers.
func (p Payload) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Keys returns the payload keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodePayload serializes p for storage. A payload that cannot be
// represented as a protobuf Struct, or that holds non-finite numbers, fails
// with ErrSerialization.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		p = Payload{}
	}

	s, err := structpb.NewStruct(map[string]any(p))
	if err != nil {
		return nil, errors.NewSerialization("encode payload", err)
	}

	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, errors.NewSerialization("encode payload", err)
	}
	return data, nil
}

// DecodePayload parses a payload written by EncodePayload. Numbers come back
// as float64.
func DecodePayload(data []byte) (Payload, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, errors.NewSerialization("decode payload", err)
	}
	return Payload(s.AsMap()), nil
}
