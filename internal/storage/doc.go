// Package storage groups the support packages around the metrics store.
//
// Data flow:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│  Collector  │────▶│    Store    │────▶│  Retention  │
//	│  (+buffer)  │     │ sqlite/duck │     │   Manager   │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                           │                   │
//	                           ▼                   ▼
//	                    ┌─────────────┐     ┌─────────────┐
//	                    │  Aggregate  │     │   Parquet   │
//	                    │   Rollups   │     │   Archive   │
//	                    └─────────────┘     └─────────────┘
//
// Subpackages:
//   - types: records, readings, payloads, aggregates, resolutions
//   - config: YAML configuration and validation
//   - buffer: bounded queue of readings awaiting retry
//   - aggregate: DDSketch-backed bucket rollups
//   - retention: scheduled cleanup and archive pruning
//   - parquet: columnar archive and report files
package storage
