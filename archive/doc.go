// Package archive writes and restores guard snapshots of store tables
// around risky bulk loads.
//
// A Guard captures the named tables of a store into compressed,
// checksummed objects on a Sink (a local directory, an in-memory sink
// for tests, or a MinIO bucket via the minio subpackage). After a load
// succeeds the guard is deleted; after a failed load Restore rewrites
// the tables to their captured state, including append sequences.
//
// Objects live under the guard's name. The manifest object is written
// last and deleted first, so a guard is complete exactly when its
// manifest exists.
package archive
