package alloc

import (
	"math/bits"

	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// ExistenceBitmap is the per-table record existence map. Rows are one full
// bitmap blob per segment, keyed by 4-byte big-endian segment number, so
// the table's last key names the highest populated segment.
type ExistenceBitmap struct {
	geo  model.Geometry
	name string
	tbl  store.Table

	// Highest populated segment + 1; -1 until first read.
	segments int
}

// NewExistenceBitmap binds the existence map to its table for one unit of
// work.
func NewExistenceBitmap(geo model.Geometry, name string, tbl store.Table) *ExistenceBitmap {
	return &ExistenceBitmap{geo: geo, name: name, tbl: tbl, segments: -1}
}

func ebmKey(segmentNumber int) []byte {
	return store.AppendKey(uint64(segmentNumber))
}

// Segments returns the number of the highest populated segment plus one,
// zero for an empty table.
func (e *ExistenceBitmap) Segments() (int, error) {
	if e.segments >= 0 {
		return e.segments, nil
	}
	cur, err := e.tbl.Cursor()
	if err != nil {
		return 0, err
	}
	defer cur.Close()
	key, _, ok := cur.Last()
	if !ok {
		if err := cur.Err(); err != nil {
			return 0, err
		}
		e.segments = 0
		return 0, nil
	}
	n, ok := store.ParseAppendKey(key)
	if !ok {
		return 0, model.NewConsistency(e.name, string(key), nil)
	}
	e.segments = int(n) + 1
	return e.segments, nil
}

// Read materialises the existence bitmap for one segment.
func (e *ExistenceBitmap) Read(segmentNumber int) (*segment.Bitmap, bool, error) {
	payload, found, err := e.tbl.Get(ebmKey(segmentNumber))
	if err != nil || !found {
		return nil, false, err
	}
	bm, err := segment.DecodeBitmap(e.geo, segmentNumber, "", payload)
	if err != nil {
		return nil, false, model.NewConsistency(e.name, string(ebmKey(segmentNumber)), err)
	}
	return bm, true, nil
}

// IsSet reports whether record is flagged as existing.
func (e *ExistenceBitmap) IsSet(record int) (bool, error) {
	seg, rel := e.geo.Split(record)
	if rel < 0 {
		return false, nil
	}
	bm, found, err := e.Read(seg)
	if err != nil || !found {
		return false, err
	}
	return bm.Contains(record), nil
}

// Set flags record as existing, creating the segment's blob on first use.
func (e *ExistenceBitmap) Set(record int) error {
	seg, rel := e.geo.Split(record)
	if rel < 0 {
		return nil
	}
	bm, found, err := e.Read(seg)
	if err != nil {
		return err
	}
	if !found {
		bm = segment.NewBitmap(e.geo, seg, "", nil)
	}
	bm.Set(record)
	if err := e.tbl.Put(ebmKey(seg), bm.Encode()); err != nil {
		return err
	}
	if e.segments >= 0 && seg+1 > e.segments {
		e.segments = seg + 1
	}
	return nil
}

// Clear unflags record. Clearing against a missing segment blob reports a
// ConsistencyError: the record was supposed to exist.
func (e *ExistenceBitmap) Clear(record int) error {
	seg, rel := e.geo.Split(record)
	if rel < 0 {
		return nil
	}
	bm, found, err := e.Read(seg)
	if err != nil {
		return err
	}
	if !found {
		return model.NewConsistency(e.name, string(ebmKey(seg)), nil)
	}
	bm.Clear(record)
	return e.tbl.Put(ebmKey(seg), bm.Encode())
}

// Count returns the total number of existing records.
func (e *ExistenceBitmap) Count() (int, error) {
	total := 0
	err := e.Walk(func(_ int, bm *segment.Bitmap) error {
		total += bm.Count()
		return nil
	})
	return total, err
}

// Walk visits every populated segment's bitmap in ascending segment order.
func (e *ExistenceBitmap) Walk(fn func(segmentNumber int, bm *segment.Bitmap) error) error {
	cur, err := e.tbl.Cursor()
	if err != nil {
		return err
	}
	defer cur.Close()
	for key, payload, ok := cur.First(); ok; key, payload, ok = cur.Next() {
		n, ok := store.ParseAppendKey(key)
		if !ok {
			return model.NewConsistency(e.name, string(key), nil)
		}
		bm, err := segment.DecodeBitmap(e.geo, int(n), "", payload)
		if err != nil {
			return model.NewConsistency(e.name, string(key), err)
		}
		if err := fn(int(n), bm); err != nil {
			return err
		}
	}
	return cur.Err()
}

// firstClear returns the lowest relative record number whose bit is off,
// scanning the encoded form byte by byte.
func firstClear(bm *segment.Bitmap) (int, bool) {
	for i, b := range bm.Encode() {
		if b != 0xFF {
			return i*8 + bits.LeadingZeros8(^b), true
		}
	}
	return 0, false
}
