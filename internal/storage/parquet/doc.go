// Package parquet reads and writes Parquet files for metric records and
// rollup buckets.
//
// The package provides:
//   - RecordWriter/RecordReader for raw metric records
//   - AggregateWriter and ReadAggregates for rollup exports
//   - Archiver, which receives records swept by retention cleanup
//   - zstd, snappy and uncompressed codecs
package parquet
