// Package alloc tracks record and blob allocation for one primary table.
//
// Three pieces of bookkeeping live here, all persisted through the store
// contract:
//
//   - ExistenceBitmap: one bitmap blob per segment flagging which record
//     numbers are in use, keyed by 4-byte big-endian segment number.
//   - FreeSlotTracker: the set of segment numbers known to hold at least one
//     freed record number, held under control key "E". Reuse hands out the
//     lowest freed number, never touching the high segment.
//   - FreeBlobPages: freed list-blob and bitmap-blob page numbers under
//     control keys "L" and "B", reused lowest first when an index entry
//     needs backing storage.
//
// The segment sets behind the control keys are roaring bitmaps in their
// standard serialized form.
package alloc
