// Package model defines core types shared by every layer of the engine.
//
// # Record-number space
//
//   - RecordNumber: dense 0-based primary record number (uint64 range in the
//     adapter, uint32 on disk)
//   - SegmentNumber: RecordNumber / Geometry.SegmentSize
//   - Geometry: the two tunables of the segmented space, SegmentSize and
//     ConversionLimit
//
// # Errors
//
//   - ConfigurationError: invalid geometry or schema, fatal at construction
//   - OriginMismatchError: set algebra across different databases or
//     combinators across different segment numbers
//   - ConsistencyError: a referenced segment blob is missing from storage
//   - NotSupportedError: operation invoked on a variant that cannot carry it
//
// Absence of a record, segment or position is never an error; operations
// return an explicit ok flag instead.
package model
