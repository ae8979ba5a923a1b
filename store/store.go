// Package store defines the key-value contract the engine runs against.
//
// A Store hands out transactions; a transaction hands out named tables; a
// table is an ordered byte-keyed map with an append sequence. The engine is
// single threaded and never issues overlapping calls against one
// transaction, so adapters need no locking of their own beyond whatever
// their backend already does.
//
// Ordering is plain bytewise comparison of keys. What a cursor sees of
// writes made after its creation is backend-dependent, as is its position
// after a motion reports ok=false; the engine therefore reopens cursors
// after writing and repositions with First, Last or Seek before stepping
// past a reported end.
//
// Absence is not an error: Get reports a found flag, cursor motion reports
// an ok flag. Errors are reserved for adapter failures.
package store

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrNoTable reports a read of a table never written to.
	ErrNoTable = errors.New("table not defined")
	// ErrReadOnly reports a write through a read-only transaction.
	ErrReadOnly = errors.New("read-only transaction")
	// ErrKeySpace reports an append sequence that outgrew the 4-byte key
	// encoding.
	ErrKeySpace = errors.New("append key space exhausted")
)

// Store is a handle on one key-value database.
type Store interface {
	// Begin starts a transaction. At most one writable transaction runs
	// at a time; the caller owns Commit or Rollback.
	Begin(writable bool) (Txn, error)
	// Close releases the store. Open transactions become invalid.
	Close() error
}

// Txn is one unit of work.
type Txn interface {
	// Table returns the named table, creating it in a writable
	// transaction and reporting ErrNoTable in a read-only one.
	Table(name string) (Table, error)
	Commit() error
	Rollback() error
}

// Table is an ordered byte-keyed map.
type Table interface {
	// Get returns the value stored under key, with a found flag.
	Get(key []byte) ([]byte, bool, error)
	// Put stores value under key, overwriting any previous value.
	Put(key, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error
	// Append stores value under the next key in the table's sequence and
	// returns that key's number. The key bytes are AppendKey(n).
	Append(value []byte) (uint64, error)
	// Sequence returns the number the next Append will use.
	Sequence() (uint64, error)
	// SetSequence moves the append sequence so the next Append uses n.
	SetSequence(n uint64) error
	// Cursor returns an ordered cursor over the table.
	Cursor() (Cursor, error)
}

// Cursor walks a table in key order. Returned slices are valid until the
// next cursor operation; callers copy what they keep.
type Cursor interface {
	First() (key, value []byte, ok bool)
	Last() (key, value []byte, ok bool)
	Next() (key, value []byte, ok bool)
	Prev() (key, value []byte, ok bool)
	// Seek positions at the first key >= target.
	Seek(target []byte) (key, value []byte, ok bool)
	// Err returns the first failure the cursor ran into; motion reports
	// ok=false both at the end of the table and on failure.
	Err() error
	Close() error
}

// AppendKey is the key encoding used by Table.Append: 4 bytes big-endian,
// matching the width of blob references inside index rows.
func AppendKey(n uint64) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(n))
	return key
}

// ParseAppendKey is the inverse of AppendKey.
func ParseAppendKey(key []byte) (uint64, bool) {
	if len(key) != 4 {
		return 0, false
	}
	return uint64(binary.BigEndian.Uint32(key)), true
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such bound exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
