// Package index maintains the inverted indexes over the store contract.
//
// A secondary index holds one row per (value, segment) pair under the
// composite key value || 0x00 || big-endian segment number. The row itself
// is one of three fixed layouts keyed off its length:
//
//	Int    6 bytes: segment(4) record-in-segment(2)
//	List  10 bytes: segment(4) count(2) blob key(4)
//	Bitmap 11 bytes: segment(4) count(3) blob key(4)
//
// List and bitmap payloads live in separate blob tables under 4-byte append
// keys; freed pages recycle through alloc.FreeBlobPages. Single-record
// maintenance (Put, Delete) converts between the layouts as membership
// crosses the conversion limit.
//
// Cursors compose the store's ordered row scan with the in-segment cursors,
// adding prefix filtering, positional addressing and the exhaustion
// sentinels that let a reversed cursor resume at the true first or last
// member.
package index
