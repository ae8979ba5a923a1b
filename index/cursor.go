package index

import (
	"bytes"

	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

type cursorState int

const (
	curUnset cursorState = iota
	curOn
	curBefore
	curAfter
)

// SecondaryCursor walks the (value, record) entries of one index in order,
// composing the row scan with the positioned segment's own cursor. Motions
// report ok=false both at exhaustion and after an error; Err separates the
// two. A cursor sees the rows its transaction saw when the cursor was
// opened, so callers reopen cursors after index maintenance.
type SecondaryCursor struct {
	x       *Secondary
	kv      store.Cursor
	filter  []byte
	noMatch bool
	state   cursorState
	value   string
	seg     segment.Segment
	err     error
}

// Cursor opens a cursor over the whole index.
func (x *Secondary) Cursor() (*SecondaryCursor, error) {
	kv, err := x.rows.Cursor()
	if err != nil {
		return nil, err
	}
	return &SecondaryCursor{x: x, kv: kv}, nil
}

// Close releases the underlying row cursor.
func (c *SecondaryCursor) Close() error { return c.kv.Close() }

// Err reports the first failure hit by a motion, or nil.
func (c *SecondaryCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.kv.Err()
}

// SetFilter restricts the cursor to values with the given literal prefix.
// An empty prefix removes the restriction. Any position is forgotten.
func (c *SecondaryCursor) SetFilter(prefix string) error {
	if err := CheckValue(prefix); err != nil {
		return err
	}
	if prefix == "" {
		c.filter = nil
	} else {
		c.filter = []byte(prefix)
	}
	c.noMatch = false
	c.state = curUnset
	c.seg = nil
	return nil
}

// MarkNoMatch pins the cursor to the empty view: every later operation
// reports no entries without touching storage, until SetFilter is called.
func (c *SecondaryCursor) MarkNoMatch() {
	c.noMatch = true
	c.state = curUnset
	c.seg = nil
}

func (c *SecondaryCursor) blocked() bool { return c.err != nil || c.noMatch }

// on records a successful landing on a row and positions within its
// segment, from the front when forward is true, else from the back.
func (c *SecondaryCursor) on(key, payload []byte, forward bool) (string, int, bool) {
	value, segNo, ok := SplitRowKey(key)
	if !ok {
		c.err = model.NewConsistency(c.x.name, string(key), nil)
		return "", 0, false
	}
	row, err := DecodeRow(payload)
	if err != nil {
		c.err = model.NewConsistency(c.x.name, string(key), err)
		return "", 0, false
	}
	if row.Segment != segNo {
		c.err = model.NewConsistency(c.x.name, string(key), nil)
		return "", 0, false
	}
	s, err := c.x.materialize(value, row)
	if err != nil {
		c.err = err
		return "", 0, false
	}
	var record int
	if forward {
		record, _ = s.First()
	} else {
		record, _ = s.Last()
	}
	c.state, c.value, c.seg = curOn, value, s
	return value, record, true
}

func (c *SecondaryCursor) inFilter(key []byte) bool {
	return len(c.filter) == 0 || bytes.HasPrefix(key, c.filter)
}

// First positions at the first entry of the filtered view.
func (c *SecondaryCursor) First() (string, int, bool) {
	if c.blocked() {
		return "", 0, false
	}
	var k, v []byte
	var ok bool
	if len(c.filter) == 0 {
		k, v, ok = c.kv.First()
	} else {
		k, v, ok = c.kv.Seek(c.filter)
	}
	if !ok || !c.inFilter(k) {
		c.state, c.seg = curAfter, nil
		return "", 0, false
	}
	return c.on(k, v, true)
}

// Last positions at the last entry of the filtered view.
func (c *SecondaryCursor) Last() (string, int, bool) {
	if c.blocked() {
		return "", 0, false
	}
	var k, v []byte
	var ok bool
	if len(c.filter) == 0 {
		k, v, ok = c.kv.Last()
	} else if end := store.PrefixEnd(c.filter); end == nil {
		k, v, ok = c.kv.Last()
	} else if k, v, ok = c.kv.Seek(end); ok {
		k, v, ok = c.kv.Prev()
	} else {
		k, v, ok = c.kv.Last()
	}
	if !ok || !c.inFilter(k) {
		c.state, c.seg = curBefore, nil
		return "", 0, false
	}
	return c.on(k, v, false)
}

// Next advances to the following entry. At the end of the view the cursor
// stays pinned there: further Next calls keep reporting false, while Prev
// resumes at the last entry.
func (c *SecondaryCursor) Next() (string, int, bool) {
	if c.blocked() {
		return "", 0, false
	}
	switch c.state {
	case curUnset, curBefore:
		return c.First()
	case curAfter:
		return "", 0, false
	}
	if record, ok := c.seg.Next(); ok {
		return c.value, record, true
	}
	k, v, ok := c.kv.Next()
	if !ok || !c.inFilter(k) {
		c.state = curAfter
		return "", 0, false
	}
	return c.on(k, v, true)
}

// Prev retreats to the preceding entry, mirroring Next.
func (c *SecondaryCursor) Prev() (string, int, bool) {
	if c.blocked() {
		return "", 0, false
	}
	switch c.state {
	case curUnset, curAfter:
		return c.Last()
	case curBefore:
		return "", 0, false
	}
	if record, ok := c.seg.Prev(); ok {
		return c.value, record, true
	}
	k, v, ok := c.kv.Prev()
	if !ok || !c.inFilter(k) {
		c.state = curBefore
		return "", 0, false
	}
	return c.on(k, v, false)
}

// Nearest positions at the first entry whose value sorts at or after key.
// Inside a filtered view a key below the filter starts from the view's
// first entry.
func (c *SecondaryCursor) Nearest(key string) (string, int, bool) {
	if c.blocked() {
		return "", 0, false
	}
	if err := CheckValue(key); err != nil {
		c.err = err
		return "", 0, false
	}
	target := []byte(key)
	if len(c.filter) > 0 && bytes.Compare(target, c.filter) < 0 {
		target = c.filter
	}
	k, v, ok := c.kv.Seek(target)
	if !ok || !c.inFilter(k) {
		c.state, c.seg = curAfter, nil
		return "", 0, false
	}
	return c.on(k, v, true)
}

// SetAt positions exactly at (value, record) if that entry exists in the
// view. Otherwise it reports false and leaves the position untouched.
func (c *SecondaryCursor) SetAt(value string, record int) (string, int, bool) {
	if c.blocked() {
		return "", 0, false
	}
	if len(c.filter) > 0 && !bytes.HasPrefix([]byte(value), c.filter) {
		return "", 0, false
	}
	if err := CheckValue(value); err != nil {
		c.err = err
		return "", 0, false
	}
	segNo, rel := c.x.geo.Split(record)
	if rel < 0 {
		return "", 0, false
	}
	key := RowKey(value, segNo)
	payload, found, err := c.x.rows.Get(key)
	if err != nil {
		c.err = err
		return "", 0, false
	}
	if !found {
		return "", 0, false
	}
	row, err := DecodeRow(payload)
	if err != nil {
		c.err = model.NewConsistency(c.x.name, string(key), err)
		return "", 0, false
	}
	s, err := c.x.materialize(value, row)
	if err != nil {
		c.err = err
		return "", 0, false
	}
	if _, ok := s.SetAt(record); !ok {
		return "", 0, false
	}
	if k, _, ok := c.kv.Seek(key); !ok || !bytes.Equal(k, key) {
		// The row exists in the transaction but not in the cursor's
		// view. Put the cursor back where it was.
		c.restore()
		return "", 0, false
	}
	c.state, c.value, c.seg = curOn, value, s
	return value, record, true
}

// restore re-seeks the row backing the current position after a failed
// repositioning attempt moved the underlying cursor.
func (c *SecondaryCursor) restore() {
	if c.state != curOn {
		return
	}
	key := RowKey(c.value, c.seg.Number())
	if k, _, ok := c.kv.Seek(key); !ok || !bytes.Equal(k, key) {
		c.state, c.seg = curUnset, nil
	}
}

// Count reports the number of entries in the filtered view. The cursor's
// position is not disturbed.
func (c *SecondaryCursor) Count() (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.noMatch {
		return 0, nil
	}
	cur, err := c.x.rows.Cursor()
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	total := 0
	for k, v, ok := c.seekStart(cur); ok && c.inFilter(k); k, v, ok = cur.Next() {
		row, err := DecodeRow(v)
		if err != nil {
			return 0, model.NewConsistency(c.x.name, string(k), err)
		}
		total += row.Count
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}
	return total, nil
}

// PositionOf reports the number of entries in the filtered view that sort
// strictly before (value, record): the entry's 0-based position when it
// exists, otherwise the position it would occupy.
func (c *SecondaryCursor) PositionOf(value string, record int) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.noMatch {
		return 0, nil
	}
	if err := CheckValue(value); err != nil {
		return 0, err
	}
	segNo, _ := c.x.geo.Split(record)
	target := RowKey(value, segNo)

	cur, err := c.x.rows.Cursor()
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	total := 0
	for k, v, ok := c.seekStart(cur); ok && c.inFilter(k); k, v, ok = cur.Next() {
		cmp := bytes.Compare(k, target)
		if cmp > 0 {
			break
		}
		row, err := DecodeRow(v)
		if err != nil {
			return 0, model.NewConsistency(c.x.name, string(k), err)
		}
		if cmp < 0 {
			total += row.Count
			continue
		}
		s, err := c.x.materialize(value, row)
		if err != nil {
			return 0, err
		}
		total += s.PositionOf(record)
		break
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}
	return total, nil
}

// RecordAt resolves the entry at a 0-based position in the filtered view.
// Negative positions count back from the end, -1 being the last entry. The
// cursor's position is not disturbed.
func (c *SecondaryCursor) RecordAt(position int) (string, int, bool, error) {
	if c.err != nil {
		return "", 0, false, c.err
	}
	if c.noMatch {
		return "", 0, false, nil
	}
	cur, err := c.x.rows.Cursor()
	if err != nil {
		return "", 0, false, err
	}
	defer cur.Close()

	if position >= 0 {
		return c.recordAtForward(cur, position)
	}
	return c.recordAtBackward(cur, -position-1)
}

func (c *SecondaryCursor) recordAtForward(cur store.Cursor, position int) (string, int, bool, error) {
	before := 0
	for k, v, ok := c.seekStart(cur); ok && c.inFilter(k); k, v, ok = cur.Next() {
		row, err := DecodeRow(v)
		if err != nil {
			return "", 0, false, model.NewConsistency(c.x.name, string(k), err)
		}
		if position >= before+row.Count {
			before += row.Count
			continue
		}
		value, _, ok := SplitRowKey(k)
		if !ok {
			return "", 0, false, model.NewConsistency(c.x.name, string(k), nil)
		}
		s, err := c.x.materialize(value, row)
		if err != nil {
			return "", 0, false, err
		}
		record, ok := s.RecordAt(position-before, true)
		return value, record, ok, nil
	}
	return "", 0, false, cur.Err()
}

// recordAtBackward resolves the entry at 0-based offset back from the end
// of the filtered view.
func (c *SecondaryCursor) recordAtBackward(cur store.Cursor, back int) (string, int, bool, error) {
	k, v, ok := c.seekEnd(cur)
	after := 0
	for ; ok && c.inFilter(k); k, v, ok = cur.Prev() {
		row, err := DecodeRow(v)
		if err != nil {
			return "", 0, false, model.NewConsistency(c.x.name, string(k), err)
		}
		if back >= after+row.Count {
			after += row.Count
			continue
		}
		value, _, ok := SplitRowKey(k)
		if !ok {
			return "", 0, false, model.NewConsistency(c.x.name, string(k), nil)
		}
		s, err := c.x.materialize(value, row)
		if err != nil {
			return "", 0, false, err
		}
		record, ok := s.RecordAt(back-after, false)
		return value, record, ok, nil
	}
	return "", 0, false, cur.Err()
}

// seekStart positions a scratch cursor at the first row of the view.
func (c *SecondaryCursor) seekStart(cur store.Cursor) ([]byte, []byte, bool) {
	if len(c.filter) == 0 {
		return cur.First()
	}
	return cur.Seek(c.filter)
}

// seekEnd positions a scratch cursor at the last row of the view.
func (c *SecondaryCursor) seekEnd(cur store.Cursor) ([]byte, []byte, bool) {
	if len(c.filter) == 0 {
		return cur.Last()
	}
	end := store.PrefixEnd(c.filter)
	if end == nil {
		return cur.Last()
	}
	if _, _, ok := cur.Seek(end); ok {
		return cur.Prev()
	}
	return cur.Last()
}
