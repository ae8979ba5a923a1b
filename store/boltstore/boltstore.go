// Package boltstore adapts a bbolt database to the store contract. Tables
// are buckets, the append sequence is the bucket sequence shifted to
// 0-based keys.
package boltstore

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// Store wraps one bbolt database file.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Begin(writable bool) (store.Txn, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltTxn{tx: tx}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type boltTxn struct {
	tx *bolt.Tx
}

func (t *boltTxn) Table(name string) (store.Table, error) {
	if t.tx.Writable() {
		b, err := t.tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return nil, err
		}
		return &boltTable{b: b}, nil
	}
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, store.ErrNoTable
	}
	return &boltTable{b: b}, nil
}

func (t *boltTxn) Commit() error { return t.tx.Commit() }

func (t *boltTxn) Rollback() error { return t.tx.Rollback() }

type boltTable struct {
	b *bolt.Bucket
}

func (t *boltTable) Get(key []byte) ([]byte, bool, error) {
	v := t.b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

func (t *boltTable) Put(key, value []byte) error {
	if !t.b.Writable() {
		return store.ErrReadOnly
	}
	return t.b.Put(key, value)
}

func (t *boltTable) Delete(key []byte) error {
	if !t.b.Writable() {
		return store.ErrReadOnly
	}
	return t.b.Delete(key)
}

func (t *boltTable) Append(value []byte) (uint64, error) {
	if !t.b.Writable() {
		return 0, store.ErrReadOnly
	}
	seq, err := t.b.NextSequence()
	if err != nil {
		return 0, err
	}
	n := seq - 1
	if n > 0xFFFFFFFF {
		return 0, store.ErrKeySpace
	}
	if err := t.b.Put(store.AppendKey(n), value); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *boltTable) Sequence() (uint64, error) { return t.b.Sequence(), nil }

func (t *boltTable) SetSequence(n uint64) error {
	if !t.b.Writable() {
		return store.ErrReadOnly
	}
	return t.b.SetSequence(n)
}

func (t *boltTable) Cursor() (store.Cursor, error) {
	return &boltCursor{c: t.b.Cursor()}, nil
}

// boltCursor adapts the bucket cursor. bbolt pins Next after the last key
// to nil forever, which matches the contract directly.
type boltCursor struct {
	c *bolt.Cursor
}

func (c *boltCursor) First() ([]byte, []byte, bool) { return present(c.c.First()) }
func (c *boltCursor) Last() ([]byte, []byte, bool)  { return present(c.c.Last()) }
func (c *boltCursor) Next() ([]byte, []byte, bool)  { return present(c.c.Next()) }
func (c *boltCursor) Prev() ([]byte, []byte, bool)  { return present(c.c.Prev()) }

func (c *boltCursor) Seek(target []byte) ([]byte, []byte, bool) {
	return present(c.c.Seek(target))
}

func (c *boltCursor) Err() error   { return nil }
func (c *boltCursor) Close() error { return nil }

func present(k, v []byte) ([]byte, []byte, bool) {
	if k == nil {
		return nil, nil, false
	}
	return k, v, true
}
