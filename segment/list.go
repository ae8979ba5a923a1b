package segment

import (
	"encoding/binary"
	"sort"

	"github.com/RogerMarsh/solentware-base-sub000/model"
)

// List holds a segment as a sorted, deduplicated slice of relative record
// numbers. It is the representation of choice for 2 up to ConversionLimit
// members.
type List struct {
	geo     model.Geometry
	number  int
	key     string
	records []uint16
	cur     cursorState
	pos     int
}

// NewList returns a List over the given relative record numbers, which need
// not arrive sorted or unique.
func NewList(geo model.Geometry, number int, key string, relative ...int) *List {
	s := &List{geo: geo, number: number, key: key}
	for _, r := range relative {
		s.Insert(geo.Join(number, r))
	}
	return s
}

func (s *List) Number() int              { return s.number }
func (s *List) Key() string              { return s.key }
func (s *List) Count() int               { return len(s.records) }
func (s *List) Geometry() model.Geometry { return s.geo }

func (s *List) absolute(i int) int { return s.geo.Join(s.number, int(s.records[i])) }

// rank returns the number of members strictly below the relative record
// number, which is also the insertion point keeping the slice sorted.
func (s *List) rank(relative int) int {
	return sort.Search(len(s.records), func(i int) bool {
		return int(s.records[i]) >= relative
	})
}

func (s *List) First() (int, bool) {
	if len(s.records) == 0 {
		return 0, false
	}
	s.cur, s.pos = cursorOn, 0
	return s.absolute(0), true
}

func (s *List) Last() (int, bool) {
	if len(s.records) == 0 {
		return 0, false
	}
	s.cur, s.pos = cursorOn, len(s.records)-1
	return s.absolute(s.pos), true
}

func (s *List) Next() (int, bool) {
	switch s.cur {
	case cursorUnset, cursorBefore:
		return s.First()
	case cursorOn:
		if s.pos+1 < len(s.records) {
			s.pos++
			return s.absolute(s.pos), true
		}
		s.cur = cursorAfter
	}
	return 0, false
}

func (s *List) Prev() (int, bool) {
	switch s.cur {
	case cursorUnset, cursorAfter:
		return s.Last()
	case cursorOn:
		if s.pos > 0 {
			s.pos--
			return s.absolute(s.pos), true
		}
		s.cur = cursorBefore
	}
	return 0, false
}

func (s *List) Current() (int, bool) {
	if s.cur != cursorOn {
		return 0, false
	}
	return s.absolute(s.pos), true
}

func (s *List) SetAt(record int) (int, bool) {
	_, rel := s.geo.Split(record)
	if record != s.geo.Join(s.number, rel) {
		return 0, false
	}
	i := s.rank(rel)
	if i == len(s.records) || int(s.records[i]) != rel {
		return 0, false
	}
	s.cur, s.pos = cursorOn, i
	return record, true
}

func (s *List) PositionOf(record int) int {
	_, rel := s.geo.Split(record)
	return s.rank(rel)
}

func (s *List) RecordAt(position int, forward bool) (int, bool) {
	if position < 0 || position >= len(s.records) {
		return 0, false
	}
	if forward {
		return s.absolute(position), true
	}
	return s.absolute(len(s.records) - position - 1), true
}

func (s *List) Contains(record int) bool {
	_, rel := s.geo.Split(record)
	if record != s.geo.Join(s.number, rel) {
		return false
	}
	i := s.rank(rel)
	return i < len(s.records) && int(s.records[i]) == rel
}

// Insert adds record to the membership, reporting whether it was absent.
// Any active cursor position is discarded.
func (s *List) Insert(record int) bool {
	seg, rel := s.geo.Split(record)
	if seg != s.number || rel < 0 {
		return false
	}
	i := s.rank(rel)
	if i < len(s.records) && int(s.records[i]) == rel {
		return false
	}
	s.records = append(s.records, 0)
	copy(s.records[i+1:], s.records[i:])
	s.records[i] = uint16(rel)
	s.cur = cursorUnset
	return true
}

// Remove drops record from the membership, reporting whether it was present.
// Any active cursor position is discarded.
func (s *List) Remove(record int) bool {
	seg, rel := s.geo.Split(record)
	if seg != s.number || rel < 0 {
		return false
	}
	i := s.rank(rel)
	if i == len(s.records) || int(s.records[i]) != rel {
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.cur = cursorUnset
	return true
}

func (s *List) Normalize() Segment {
	switch {
	case len(s.records) > s.geo.ConversionLimit:
		return s.Promote()
	case len(s.records) == 1:
		return NewInt(s.geo, s.number, s.key, int(s.records[0]))
	default:
		return s
	}
}

func (s *List) Promote() *Bitmap {
	b := NewBitmap(s.geo, s.number, s.key, nil)
	for _, r := range s.records {
		b.Set(s.geo.Join(s.number, int(r)))
	}
	return b
}

func (s *List) Union(other Segment) (*Bitmap, error) {
	b := s.Promote()
	if err := b.OrWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *List) Intersect(other Segment) (*Bitmap, error) {
	b := s.Promote()
	if err := b.AndWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *List) SymmetricDifference(other Segment) (*Bitmap, error) {
	b := s.Promote()
	if err := b.XorWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *List) Encode() []byte {
	payload := make([]byte, 2*len(s.records))
	for i, r := range s.records {
		binary.BigEndian.PutUint16(payload[2*i:], r)
	}
	return payload
}

func (s *List) Copy() Segment {
	records := make([]uint16, len(s.records))
	copy(records, s.records)
	return &List{geo: s.geo, number: s.number, key: s.key, records: records}
}
