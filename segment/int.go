package segment

import (
	"encoding/binary"

	"github.com/RogerMarsh/solentware-base-sub000/model"
)

// Int holds a segment with exactly one member. It is the inline form: the
// on-disk reference carries the 2-byte record number itself, no blob.
type Int struct {
	geo    model.Geometry
	number int
	key    string
	record uint16
	cur    cursorState
}

// NewInt returns an Int for the given relative record number. The caller
// guarantees relative is within [0, SegmentSize).
func NewInt(geo model.Geometry, number int, key string, relative int) *Int {
	return &Int{geo: geo, number: number, key: key, record: uint16(relative)}
}

func (s *Int) Number() int              { return s.number }
func (s *Int) Key() string              { return s.key }
func (s *Int) Count() int               { return 1 }
func (s *Int) Geometry() model.Geometry { return s.geo }

func (s *Int) absolute() int { return s.geo.Join(s.number, int(s.record)) }

// First positions the cursor at the single member.
func (s *Int) First() (int, bool) {
	s.cur = cursorOn
	return s.absolute(), true
}

// Last positions the cursor at the single member.
func (s *Int) Last() (int, bool) {
	s.cur = cursorOn
	return s.absolute(), true
}

func (s *Int) Next() (int, bool) {
	switch s.cur {
	case cursorUnset, cursorBefore:
		return s.First()
	case cursorOn:
		s.cur = cursorAfter
	}
	return 0, false
}

func (s *Int) Prev() (int, bool) {
	switch s.cur {
	case cursorUnset, cursorAfter:
		return s.Last()
	case cursorOn:
		s.cur = cursorBefore
	}
	return 0, false
}

func (s *Int) Current() (int, bool) {
	if s.cur != cursorOn {
		return 0, false
	}
	return s.absolute(), true
}

func (s *Int) SetAt(record int) (int, bool) {
	if record != s.absolute() {
		return 0, false
	}
	s.cur = cursorOn
	return record, true
}

func (s *Int) PositionOf(record int) int {
	if record > s.absolute() {
		return 1
	}
	return 0
}

func (s *Int) RecordAt(position int, forward bool) (int, bool) {
	if position != 0 {
		return 0, false
	}
	return s.absolute(), true
}

func (s *Int) Contains(record int) bool { return record == s.absolute() }

// Normalize returns the receiver: one member is already minimal.
func (s *Int) Normalize() Segment { return s }

func (s *Int) Promote() *Bitmap {
	b := NewBitmap(s.geo, s.number, s.key, nil)
	b.Set(s.absolute())
	return b
}

func (s *Int) Union(other Segment) (*Bitmap, error) {
	b := s.Promote()
	if err := b.OrWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Int) Intersect(other Segment) (*Bitmap, error) {
	b := s.Promote()
	if err := b.AndWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Int) SymmetricDifference(other Segment) (*Bitmap, error) {
	b := s.Promote()
	if err := b.XorWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Int) Encode() []byte {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, s.record)
	return payload
}

func (s *Int) Copy() Segment {
	return &Int{geo: s.geo, number: s.number, key: s.key, record: s.record}
}
