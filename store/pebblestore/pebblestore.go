// Package pebblestore adapts a pebble database to the store contract.
// Tables share one keyspace under per-table prefixes; a writable
// transaction is an indexed batch, a read-only one a snapshot.
package pebblestore

import (
	"encoding/binary"
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/RogerMarsh/solentware-base-sub000/store"
)

const (
	rowPrefix  = 't'
	metaPrefix = 'm'
	seqPrefix  = 's'
)

// Store wraps one pebble database directory.
type Store struct {
	db *pebble.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Begin(writable bool) (store.Txn, error) {
	if writable {
		return &pebbleTxn{batch: s.db.NewIndexedBatch()}, nil
	}
	return &pebbleTxn{snap: s.db.NewSnapshot()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type pebbleTxn struct {
	batch *pebble.Batch
	snap  *pebble.Snapshot
}

func (t *pebbleTxn) reader() pebble.Reader {
	if t.batch != nil {
		return t.batch
	}
	return t.snap
}

func (t *pebbleTxn) writable() bool { return t.batch != nil }

func tableKey(prefix byte, name string, key []byte) []byte {
	out := make([]byte, 0, 2+len(name)+len(key))
	out = append(out, prefix)
	out = append(out, name...)
	out = append(out, 0x00)
	out = append(out, key...)
	return out
}

func (t *pebbleTxn) Table(name string) (store.Table, error) {
	meta := tableKey(metaPrefix, name, nil)
	if t.writable() {
		if err := t.batch.Set(meta, nil, nil); err != nil {
			return nil, err
		}
		return &pebbleTable{tx: t, name: name}, nil
	}
	_, closer, err := t.snap.Get(meta)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, store.ErrNoTable
	}
	if err != nil {
		return nil, err
	}
	_ = closer.Close()
	return &pebbleTable{tx: t, name: name}, nil
}

func (t *pebbleTxn) Commit() error {
	if t.batch != nil {
		return t.batch.Commit(pebble.Sync)
	}
	return t.snap.Close()
}

func (t *pebbleTxn) Rollback() error {
	if t.batch != nil {
		return t.batch.Close()
	}
	return t.snap.Close()
}

type pebbleTable struct {
	tx   *pebbleTxn
	name string
}

func (p *pebbleTable) rowKey(key []byte) []byte {
	return tableKey(rowPrefix, p.name, key)
}

func (p *pebbleTable) Get(key []byte) ([]byte, bool, error) {
	v, closer, err := p.tx.reader().Get(p.rowKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (p *pebbleTable) Put(key, value []byte) error {
	if !p.tx.writable() {
		return store.ErrReadOnly
	}
	return p.tx.batch.Set(p.rowKey(key), value, nil)
}

func (p *pebbleTable) Delete(key []byte) error {
	if !p.tx.writable() {
		return store.ErrReadOnly
	}
	return p.tx.batch.Delete(p.rowKey(key), nil)
}

func (p *pebbleTable) Append(value []byte) (uint64, error) {
	n, err := p.Sequence()
	if err != nil {
		return 0, err
	}
	if n > 0xFFFFFFFF {
		return 0, store.ErrKeySpace
	}
	if err := p.Put(store.AppendKey(n), value); err != nil {
		return 0, err
	}
	if err := p.SetSequence(n + 1); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *pebbleTable) Sequence() (uint64, error) {
	v, closer, err := p.tx.reader().Get(tableKey(seqPrefix, p.name, nil))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint64(v)
	if err := closer.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *pebbleTable) SetSequence(n uint64) error {
	if !p.tx.writable() {
		return store.ErrReadOnly
	}
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], n)
	return p.tx.batch.Set(tableKey(seqPrefix, p.name, nil), v[:], nil)
}

func (p *pebbleTable) Cursor() (store.Cursor, error) {
	lower := p.rowKey(nil)
	iter, err := p.tx.reader().NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: store.PrefixEnd(lower),
	})
	if err != nil {
		return nil, err
	}
	return &pebbleCursor{iter: iter, prefix: lower}, nil
}

type pebbleCursor struct {
	iter   *pebble.Iterator
	prefix []byte
}

func (c *pebbleCursor) at(valid bool) ([]byte, []byte, bool) {
	if !valid {
		return nil, nil, false
	}
	return c.iter.Key()[len(c.prefix):], c.iter.Value(), true
}

func (c *pebbleCursor) First() ([]byte, []byte, bool) { return c.at(c.iter.First()) }
func (c *pebbleCursor) Last() ([]byte, []byte, bool)  { return c.at(c.iter.Last()) }
func (c *pebbleCursor) Next() ([]byte, []byte, bool)  { return c.at(c.iter.Next()) }
func (c *pebbleCursor) Prev() ([]byte, []byte, bool)  { return c.at(c.iter.Prev()) }

func (c *pebbleCursor) Seek(target []byte) ([]byte, []byte, bool) {
	full := make([]byte, 0, len(c.prefix)+len(target))
	full = append(full, c.prefix...)
	full = append(full, target...)
	return c.at(c.iter.SeekGE(full))
}

func (c *pebbleCursor) Err() error   { return c.iter.Error() }
func (c *pebbleCursor) Close() error { return c.iter.Close() }
