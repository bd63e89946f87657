// Package types defines the core data types shared by the store, the
// retention manager, the rollup engine and the analytics engine.
//
// Key types:
//   - MetricRecord: A persisted, immutable health reading
//   - Reading: The caller-supplied part of a record passed to Store.Insert
//   - Payload: The opaque key/value measurement body of a record
//   - Stats: Aggregate counts over the whole store
//   - AggregateResult: Rolled-up statistics for a time bucket
//   - Resolution: Rollup bucket size (1min, 5min, hourly, daily)
package types
