// Package memstore is the in-memory store adapter. A writable transaction
// clones the table set at Begin, Commit swaps the clone in, Rollback throws
// it away. It backs tests and small working sets.
package memstore

import (
	"sort"

	"github.com/RogerMarsh/solentware-base-sub000/store"
)

type table struct {
	rows map[string][]byte
	keys []string // sorted
	seq  uint64
}

func (t *table) clone() *table {
	rows := make(map[string][]byte, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return &table{rows: rows, keys: keys, seq: t.seq}
}

// Store holds every table of one in-memory database.
type Store struct {
	tables map[string]*table
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) Begin(writable bool) (store.Txn, error) {
	txn := &memTxn{s: s, writable: writable}
	if writable {
		txn.tables = make(map[string]*table, len(s.tables))
		for name, t := range s.tables {
			txn.tables[name] = t.clone()
		}
	} else {
		txn.tables = s.tables
	}
	return txn, nil
}

func (s *Store) Close() error {
	s.tables = make(map[string]*table)
	return nil
}

type memTxn struct {
	s        *Store
	writable bool
	tables   map[string]*table
	done     bool
}

func (tx *memTxn) Table(name string) (store.Table, error) {
	t, ok := tx.tables[name]
	if !ok {
		if !tx.writable {
			return nil, store.ErrNoTable
		}
		t = &table{rows: make(map[string][]byte)}
		tx.tables[name] = t
	}
	return &memTable{tx: tx, t: t}, nil
}

func (tx *memTxn) Commit() error {
	if tx.done {
		return nil
	}
	tx.done = true
	if tx.writable {
		tx.s.tables = tx.tables
	}
	return nil
}

func (tx *memTxn) Rollback() error {
	tx.done = true
	return nil
}

type memTable struct {
	tx *memTxn
	t  *table
}

func (m *memTable) Get(key []byte) ([]byte, bool, error) {
	v, ok := m.t.rows[string(key)]
	return v, ok, nil
}

func (m *memTable) Put(key, value []byte) error {
	if !m.tx.writable {
		return store.ErrReadOnly
	}
	k := string(key)
	if _, ok := m.t.rows[k]; !ok {
		i := sort.SearchStrings(m.t.keys, k)
		m.t.keys = append(m.t.keys, "")
		copy(m.t.keys[i+1:], m.t.keys[i:])
		m.t.keys[i] = k
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.t.rows[k] = v
	return nil
}

func (m *memTable) Delete(key []byte) error {
	if !m.tx.writable {
		return store.ErrReadOnly
	}
	k := string(key)
	if _, ok := m.t.rows[k]; !ok {
		return nil
	}
	delete(m.t.rows, k)
	i := sort.SearchStrings(m.t.keys, k)
	m.t.keys = append(m.t.keys[:i], m.t.keys[i+1:]...)
	return nil
}

func (m *memTable) Append(value []byte) (uint64, error) {
	if !m.tx.writable {
		return 0, store.ErrReadOnly
	}
	n := m.t.seq
	if n > 0xFFFFFFFF {
		return 0, store.ErrKeySpace
	}
	if err := m.Put(store.AppendKey(n), value); err != nil {
		return 0, err
	}
	m.t.seq = n + 1
	return n, nil
}

func (m *memTable) Sequence() (uint64, error) { return m.t.seq, nil }

func (m *memTable) SetSequence(n uint64) error {
	if !m.tx.writable {
		return store.ErrReadOnly
	}
	m.t.seq = n
	return nil
}

func (m *memTable) Cursor() (store.Cursor, error) {
	keys := make([]string, len(m.t.keys))
	copy(keys, m.t.keys)
	return &memCursor{t: m.t, keys: keys, idx: -1}, nil
}

// memCursor walks the keys as of cursor creation. idx is -1 before the
// first key and len(keys) past the last.
type memCursor struct {
	t    *table
	keys []string
	idx  int
}

func (c *memCursor) at() ([]byte, []byte, bool) {
	if c.idx < 0 || c.idx >= len(c.keys) {
		return nil, nil, false
	}
	k := c.keys[c.idx]
	v, ok := c.t.rows[k]
	if !ok {
		// Deleted since the cursor was opened; treat as a gap.
		return nil, nil, false
	}
	return []byte(k), v, true
}

func (c *memCursor) First() ([]byte, []byte, bool) {
	c.idx = 0
	return c.skipGapsForward()
}

func (c *memCursor) Last() ([]byte, []byte, bool) {
	c.idx = len(c.keys) - 1
	return c.skipGapsBackward()
}

func (c *memCursor) Next() ([]byte, []byte, bool) {
	if c.idx >= len(c.keys) {
		return nil, nil, false
	}
	c.idx++
	return c.skipGapsForward()
}

func (c *memCursor) Prev() ([]byte, []byte, bool) {
	if c.idx < 0 {
		return nil, nil, false
	}
	c.idx--
	return c.skipGapsBackward()
}

func (c *memCursor) Seek(target []byte) ([]byte, []byte, bool) {
	c.idx = sort.SearchStrings(c.keys, string(target))
	return c.skipGapsForward()
}

func (c *memCursor) skipGapsForward() ([]byte, []byte, bool) {
	for ; c.idx < len(c.keys); c.idx++ {
		if k, v, ok := c.at(); ok {
			return k, v, true
		}
	}
	c.idx = len(c.keys)
	return nil, nil, false
}

func (c *memCursor) skipGapsBackward() ([]byte, []byte, bool) {
	for ; c.idx >= 0; c.idx-- {
		if k, v, ok := c.at(); ok {
			return k, v, true
		}
	}
	c.idx = -1
	return nil, nil, false
}

func (c *memCursor) Err() error   { return nil }
func (c *memCursor) Close() error { return nil }
