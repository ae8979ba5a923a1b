package index

import (
	"bytes"
	"errors"

	"github.com/RogerMarsh/solentware-base-sub000/alloc"
	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

var errStopWalk = errors.New("stop walk")

// PrimaryCursor walks a record table in record-number order, returning
// record payloads. The record number plays the part a value plays for a
// secondary cursor, so row traversal needs no segment materialisation;
// positional addressing is answered from the existence bitmap instead.
type PrimaryCursor struct {
	geo    model.Geometry
	name   string
	data   store.Table
	ebm    *alloc.ExistenceBitmap
	kv     store.Cursor
	state  cursorState
	record int
	err    error
}

// NewPrimaryCursor opens a cursor over a record table.
func NewPrimaryCursor(geo model.Geometry, name string, data store.Table, ebm *alloc.ExistenceBitmap) (*PrimaryCursor, error) {
	kv, err := data.Cursor()
	if err != nil {
		return nil, err
	}
	return &PrimaryCursor{geo: geo, name: name, data: data, ebm: ebm, kv: kv}, nil
}

// Close releases the underlying row cursor.
func (c *PrimaryCursor) Close() error { return c.kv.Close() }

// Err reports the first failure hit by a motion, or nil.
func (c *PrimaryCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.kv.Err()
}

// SetFilter is not available on a primary cursor: record numbers are not
// prefix-addressable.
func (c *PrimaryCursor) SetFilter(string) error {
	return &model.NotSupportedError{Op: "primary cursor filter", Reason: "record numbers have no value prefix"}
}

func (c *PrimaryCursor) on(key, payload []byte) (int, []byte, bool) {
	n, ok := store.ParseAppendKey(key)
	if !ok {
		c.err = model.NewConsistency(c.name, string(key), nil)
		return 0, nil, false
	}
	c.state, c.record = curOn, int(n)
	return c.record, payload, true
}

// First positions at the lowest record.
func (c *PrimaryCursor) First() (int, []byte, bool) {
	if c.err != nil {
		return 0, nil, false
	}
	k, v, ok := c.kv.First()
	if !ok {
		c.state = curAfter
		return 0, nil, false
	}
	return c.on(k, v)
}

// Last positions at the highest record.
func (c *PrimaryCursor) Last() (int, []byte, bool) {
	if c.err != nil {
		return 0, nil, false
	}
	k, v, ok := c.kv.Last()
	if !ok {
		c.state = curBefore
		return 0, nil, false
	}
	return c.on(k, v)
}

// Next advances to the following record. At the end the cursor stays
// pinned: further Next calls keep reporting false, while Prev resumes at
// the highest record.
func (c *PrimaryCursor) Next() (int, []byte, bool) {
	if c.err != nil {
		return 0, nil, false
	}
	switch c.state {
	case curUnset, curBefore:
		return c.First()
	case curAfter:
		return 0, nil, false
	}
	k, v, ok := c.kv.Next()
	if !ok {
		c.state = curAfter
		return 0, nil, false
	}
	return c.on(k, v)
}

// Prev retreats to the preceding record, mirroring Next.
func (c *PrimaryCursor) Prev() (int, []byte, bool) {
	if c.err != nil {
		return 0, nil, false
	}
	switch c.state {
	case curUnset, curAfter:
		return c.Last()
	case curBefore:
		return 0, nil, false
	}
	k, v, ok := c.kv.Prev()
	if !ok {
		c.state = curBefore
		return 0, nil, false
	}
	return c.on(k, v)
}

// Nearest positions at the first record numbered at or above record.
func (c *PrimaryCursor) Nearest(record int) (int, []byte, bool) {
	if c.err != nil {
		return 0, nil, false
	}
	if record < 0 {
		record = 0
	}
	k, v, ok := c.kv.Seek(store.AppendKey(uint64(record)))
	if !ok {
		c.state = curAfter
		return 0, nil, false
	}
	return c.on(k, v)
}

// SetAt positions exactly at record if it exists. Otherwise it reports
// false and leaves the position untouched.
func (c *PrimaryCursor) SetAt(record int) ([]byte, bool) {
	if c.err != nil {
		return nil, false
	}
	if record < 0 {
		return nil, false
	}
	key := store.AppendKey(uint64(record))
	payload, found, err := c.data.Get(key)
	if err != nil {
		c.err = err
		return nil, false
	}
	if !found {
		return nil, false
	}
	if k, _, ok := c.kv.Seek(key); !ok || !bytes.Equal(k, key) {
		// The record exists in the transaction but not in the cursor's
		// view. Put the cursor back where it was.
		c.restore()
		return nil, false
	}
	c.state, c.record = curOn, record
	return payload, true
}

func (c *PrimaryCursor) restore() {
	if c.state != curOn {
		return
	}
	key := store.AppendKey(uint64(c.record))
	if k, _, ok := c.kv.Seek(key); !ok || !bytes.Equal(k, key) {
		c.state = curUnset
	}
}

// Count reports the number of existing records.
func (c *PrimaryCursor) Count() (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.ebm.Count()
}

// PositionOf reports the number of existing records numbered strictly
// below record: its 0-based position when it exists, otherwise the
// position it would occupy.
func (c *PrimaryCursor) PositionOf(record int) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	segNo, rel := c.geo.Split(record)
	if rel < 0 {
		return 0, nil
	}
	total := 0
	err := c.ebm.Walk(func(n int, bm *segment.Bitmap) error {
		switch {
		case n < segNo:
			total += bm.Count()
			return nil
		case n == segNo:
			total += bm.PositionOf(record)
		}
		return errStopWalk
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return 0, err
	}
	return total, nil
}

// RecordAt resolves the record at a 0-based position among existing
// records. Negative positions count back from the end, -1 being the
// highest record.
func (c *PrimaryCursor) RecordAt(position int) (int, bool, error) {
	if c.err != nil {
		return 0, false, c.err
	}
	if position >= 0 {
		record, found := 0, false
		before := 0
		err := c.ebm.Walk(func(n int, bm *segment.Bitmap) error {
			count := bm.Count()
			if position >= before+count {
				before += count
				return nil
			}
			record, found = bm.RecordAt(position-before, true)
			return errStopWalk
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			return 0, false, err
		}
		return record, found, nil
	}

	// Walking from the end needs the segments in hand first: the bitmap
	// walk only runs forward.
	var bms []*segment.Bitmap
	if err := c.ebm.Walk(func(n int, bm *segment.Bitmap) error {
		bms = append(bms, bm)
		return nil
	}); err != nil {
		return 0, false, err
	}
	back := -position - 1
	after := 0
	for i := len(bms) - 1; i >= 0; i-- {
		count := bms[i].Count()
		if back >= after+count {
			after += count
			continue
		}
		record, found := bms[i].RecordAt(back-after, false)
		return record, found, nil
	}
	return 0, false, nil
}
