// Package bulk implements deferred index maintenance for bulk loads.
//
// A Merger buffers index additions per (field, value) in memory and writes
// each segment's rows once, when the load moves past that segment, instead
// of once per record. The first segment of a load may coincide with the
// highest segment already on disk; its flush merges with the existing rows
// rather than inserting duplicates, and the same applies to every flush
// after the first chunk of a resumed load.
//
// Loads too large for one in-memory pass dump sorted chunk files with a
// DumpWriter and k-way merge them back with MergeDumps, feeding the
// combined entries straight to the index row writes.
package bulk
