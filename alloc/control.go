package alloc

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// Control keys inside a table's control table. One row per key, holding a
// serialized roaring bitmap of segment or page numbers.
const (
	keyFreedRecordSegments = "E"
	keyFreedListPages      = "L"
	keyFreedBitmapPages    = "B"
)

// controlSet is one persistent number set under a control key. The loaded
// bitmap is cached for the unit of work; every mutation writes through.
type controlSet struct {
	tbl store.Table
	key []byte
	set *roaring.Bitmap
}

func newControlSet(tbl store.Table, key string) controlSet {
	return controlSet{tbl: tbl, key: []byte(key)}
}

func (c *controlSet) load() (*roaring.Bitmap, error) {
	if c.set != nil {
		return c.set, nil
	}
	payload, found, err := c.tbl.Get(c.key)
	if err != nil {
		return nil, err
	}
	set := roaring.New()
	if found {
		if _, err := set.ReadFrom(bytes.NewReader(payload)); err != nil {
			return nil, model.NewConsistency("control", string(c.key), err)
		}
	}
	c.set = set
	return set, nil
}

func (c *controlSet) save() error {
	if c.set.IsEmpty() {
		return c.tbl.Delete(c.key)
	}
	var buf bytes.Buffer
	if _, err := c.set.WriteTo(&buf); err != nil {
		return err
	}
	return c.tbl.Put(c.key, buf.Bytes())
}

func (c *controlSet) add(n uint32) error {
	set, err := c.load()
	if err != nil {
		return err
	}
	if !set.CheckedAdd(n) {
		return nil
	}
	return c.save()
}

func (c *controlSet) remove(n uint32) error {
	set, err := c.load()
	if err != nil {
		return err
	}
	if !set.CheckedRemove(n) {
		return nil
	}
	return c.save()
}

func (c *controlSet) min() (uint32, bool, error) {
	set, err := c.load()
	if err != nil {
		return 0, false, err
	}
	if set.IsEmpty() {
		return 0, false, nil
	}
	return set.Minimum(), true, nil
}

// FreeSlotTracker records which segments hold freed record numbers and hands
// the lowest reusable number back out.
type FreeSlotTracker struct {
	geo model.Geometry
	ebm *ExistenceBitmap
	set controlSet
}

// NewFreeSlotTracker binds the tracker to its control table and the
// existence bitmap it scans for free slots.
func NewFreeSlotTracker(geo model.Geometry, control store.Table, ebm *ExistenceBitmap) *FreeSlotTracker {
	return &FreeSlotTracker{
		geo: geo,
		ebm: ebm,
		set: newControlSet(control, keyFreedRecordSegments),
	}
}

// NoteFreed records that record's segment now holds a reusable slot.
func (f *FreeSlotTracker) NoteFreed(record int) error {
	seg, rel := f.geo.Split(record)
	if rel < 0 {
		return nil
	}
	return f.set.add(uint32(seg))
}

// HasFreed reports whether any segment is flagged as holding freed slots.
func (f *FreeSlotTracker) HasFreed() (bool, error) {
	set, err := f.set.load()
	if err != nil {
		return false, err
	}
	return !set.IsEmpty(), nil
}

// LowestFreed returns the lowest reusable record number. Slots in the high
// segment are never reused, they belong to the append path. Segments found
// to be full again drop out of the tracker as they are encountered.
func (f *FreeSlotTracker) LowestFreed() (int, bool, error) {
	segments, err := f.ebm.Segments()
	if err != nil {
		return 0, false, err
	}
	for {
		seg, ok, err := f.set.min()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, nil
		}
		if int(seg) >= segments-1 {
			return 0, false, nil
		}
		bm, found, err := f.ebm.Read(int(seg))
		if err != nil {
			return 0, false, err
		}
		if !found {
			return 0, false, model.NewConsistency("exist", string(ebmKey(int(seg))), nil)
		}
		rel, ok := firstClear(bm)
		if !ok {
			if err := f.set.remove(seg); err != nil {
				return 0, false, err
			}
			continue
		}
		return f.geo.Join(int(seg), rel), true, nil
	}
}

// FreeBlobPages records freed pages of the list-blob and bitmap-blob tables
// for reuse, lowest page first.
type FreeBlobPages struct {
	list controlSet
	bits controlSet
}

// NewFreeBlobPages binds the freed-page sets to their control table.
func NewFreeBlobPages(control store.Table) *FreeBlobPages {
	return &FreeBlobPages{
		list: newControlSet(control, keyFreedListPages),
		bits: newControlSet(control, keyFreedBitmapPages),
	}
}

// NoteList records a freed list-blob page.
func (f *FreeBlobPages) NoteList(page uint64) error {
	return f.list.add(uint32(page))
}

// NoteBitmap records a freed bitmap-blob page.
func (f *FreeBlobPages) NoteBitmap(page uint64) error {
	return f.bits.add(uint32(page))
}

// TakeList pops the lowest freed list-blob page.
func (f *FreeBlobPages) TakeList() (uint64, bool, error) {
	return take(&f.list)
}

// TakeBitmap pops the lowest freed bitmap-blob page.
func (f *FreeBlobPages) TakeBitmap() (uint64, bool, error) {
	return take(&f.bits)
}

func take(c *controlSet) (uint64, bool, error) {
	page, ok, err := c.min()
	if err != nil || !ok {
		return 0, false, err
	}
	if err := c.remove(page); err != nil {
		return 0, false, err
	}
	return uint64(page), true, nil
}
