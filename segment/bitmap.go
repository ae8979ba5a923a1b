package segment

import (
	"math/bits"

	"github.com/RogerMarsh/solentware-base-sub000/model"
)

// Bitmap holds a segment as a fixed SegmentSize-bit vector, one bit per
// record slot, bit 0 being the lowest record number and the most significant
// bit of byte 0. It is the canonical form for set algebra and the compact
// form above ConversionLimit members.
type Bitmap struct {
	geo    model.Geometry
	number int
	key    string
	bits   []byte
	cur    cursorState
	pos    int // relative record number under the cursor
}

// NewBitmap returns a Bitmap over a copy of the given payload. A nil payload
// yields an empty bitmap; a short one is zero-padded to the segment size.
func NewBitmap(geo model.Geometry, number int, key string, payload []byte) *Bitmap {
	b := &Bitmap{geo: geo, number: number, key: key, bits: make([]byte, geo.BitmapBytes())}
	copy(b.bits, payload)
	return b
}

func (s *Bitmap) Number() int              { return s.number }
func (s *Bitmap) Key() string              { return s.key }
func (s *Bitmap) Geometry() model.Geometry { return s.geo }

func (s *Bitmap) Count() int {
	n := 0
	for _, b := range s.bits {
		n += bits.OnesCount8(b)
	}
	return n
}

func (s *Bitmap) has(relative int) bool {
	return s.bits[relative>>3]&(0x80>>(relative&7)) != 0
}

// scanForward returns the lowest set bit at or above from, or false.
func (s *Bitmap) scanForward(from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	for i := from >> 3; i < len(s.bits); i++ {
		b := s.bits[i]
		if i == from>>3 {
			b &= 0xFF >> (from & 7)
		}
		if b == 0 {
			continue
		}
		return i<<3 + bits.LeadingZeros8(b), true
	}
	return 0, false
}

// scanBackward returns the highest set bit at or below from, or false.
func (s *Bitmap) scanBackward(from int) (int, bool) {
	if from >= s.geo.SegmentSize {
		from = s.geo.SegmentSize - 1
	}
	for i := from >> 3; i >= 0; i-- {
		b := s.bits[i]
		if i == from>>3 {
			b &= 0xFF << (7 - from&7)
		}
		if b == 0 {
			continue
		}
		return i<<3 + 7 - bits.TrailingZeros8(b), true
	}
	return 0, false
}

func (s *Bitmap) First() (int, bool) {
	rel, ok := s.scanForward(0)
	if !ok {
		return 0, false
	}
	s.cur, s.pos = cursorOn, rel
	return s.geo.Join(s.number, rel), true
}

func (s *Bitmap) Last() (int, bool) {
	rel, ok := s.scanBackward(s.geo.SegmentSize - 1)
	if !ok {
		return 0, false
	}
	s.cur, s.pos = cursorOn, rel
	return s.geo.Join(s.number, rel), true
}

func (s *Bitmap) Next() (int, bool) {
	switch s.cur {
	case cursorUnset, cursorBefore:
		return s.First()
	case cursorOn:
		if rel, ok := s.scanForward(s.pos + 1); ok {
			s.pos = rel
			return s.geo.Join(s.number, rel), true
		}
		s.cur = cursorAfter
	}
	return 0, false
}

func (s *Bitmap) Prev() (int, bool) {
	switch s.cur {
	case cursorUnset, cursorAfter:
		return s.Last()
	case cursorOn:
		if rel, ok := s.scanBackward(s.pos - 1); ok {
			s.pos = rel
			return s.geo.Join(s.number, rel), true
		}
		s.cur = cursorBefore
	}
	return 0, false
}

func (s *Bitmap) Current() (int, bool) {
	if s.cur != cursorOn {
		return 0, false
	}
	return s.geo.Join(s.number, s.pos), true
}

func (s *Bitmap) SetAt(record int) (int, bool) {
	seg, rel := s.geo.Split(record)
	if seg != s.number || rel < 0 || !s.has(rel) {
		return 0, false
	}
	s.cur, s.pos = cursorOn, rel
	return record, true
}

func (s *Bitmap) PositionOf(record int) int {
	_, rel := s.geo.Split(record)
	if rel < 0 {
		return 0
	}
	n := 0
	for i := 0; i < rel>>3; i++ {
		n += bits.OnesCount8(s.bits[i])
	}
	if rel&7 != 0 {
		n += bits.OnesCount8(s.bits[rel>>3] & (0xFF << (8 - rel&7)))
	}
	return n
}

func (s *Bitmap) RecordAt(position int, forward bool) (int, bool) {
	if position < 0 {
		return 0, false
	}
	if !forward {
		position = s.Count() - position - 1
		if position < 0 {
			return 0, false
		}
	}
	seen := 0
	for i, b := range s.bits {
		c := bits.OnesCount8(b)
		if seen+c <= position {
			seen += c
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>bit) == 0 {
				continue
			}
			if seen == position {
				return s.geo.Join(s.number, i<<3+bit), true
			}
			seen++
		}
	}
	return 0, false
}

func (s *Bitmap) Contains(record int) bool {
	seg, rel := s.geo.Split(record)
	return seg == s.number && rel >= 0 && s.has(rel)
}

// Set turns on the bit for record, reporting whether it was clear before.
// Records outside this segment are left alone. Any active cursor position
// is discarded.
func (s *Bitmap) Set(record int) bool {
	seg, rel := s.geo.Split(record)
	if seg != s.number || rel < 0 {
		return false
	}
	s.cur = cursorUnset
	if s.has(rel) {
		return false
	}
	s.bits[rel>>3] |= 0x80 >> (rel & 7)
	return true
}

// Clear turns off the bit for record, reporting whether it was set before.
// Records outside this segment are left alone. Any active cursor position
// is discarded.
func (s *Bitmap) Clear(record int) bool {
	seg, rel := s.geo.Split(record)
	if seg != s.number || rel < 0 {
		return false
	}
	s.cur = cursorUnset
	if !s.has(rel) {
		return false
	}
	s.bits[rel>>3] &^= 0x80 >> (rel & 7)
	return true
}

func (s *Bitmap) Normalize() Segment {
	count := s.Count()
	switch {
	case count > s.geo.ConversionLimit:
		return s
	case count == 1:
		rel, _ := s.scanForward(0)
		return NewInt(s.geo, s.number, s.key, rel)
	default:
		list := &List{geo: s.geo, number: s.number, key: s.key}
		list.records = make([]uint16, 0, count)
		for rel, ok := s.scanForward(0); ok; rel, ok = s.scanForward(rel + 1) {
			list.records = append(list.records, uint16(rel))
		}
		return list
	}
}

// Promote returns the receiver: a Bitmap is already the canonical form.
func (s *Bitmap) Promote() *Bitmap { return s }

// OrWith merges other's membership into the receiver in place.
func (s *Bitmap) OrWith(other Segment) error {
	if err := mismatch("or", s, other); err != nil {
		return err
	}
	for i, b := range other.Promote().bits {
		s.bits[i] |= b
	}
	return nil
}

// AndWith intersects the receiver's membership with other's in place.
func (s *Bitmap) AndWith(other Segment) error {
	if err := mismatch("and", s, other); err != nil {
		return err
	}
	for i, b := range other.Promote().bits {
		s.bits[i] &= b
	}
	return nil
}

// XorWith replaces the receiver's membership with the symmetric difference
// in place.
func (s *Bitmap) XorWith(other Segment) error {
	if err := mismatch("xor", s, other); err != nil {
		return err
	}
	for i, b := range other.Promote().bits {
		s.bits[i] ^= b
	}
	return nil
}

func (s *Bitmap) Union(other Segment) (*Bitmap, error) {
	b := s.Copy().(*Bitmap)
	if err := b.OrWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Bitmap) Intersect(other Segment) (*Bitmap, error) {
	b := s.Copy().(*Bitmap)
	if err := b.AndWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Bitmap) SymmetricDifference(other Segment) (*Bitmap, error) {
	b := s.Copy().(*Bitmap)
	if err := b.XorWith(other); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Bitmap) Encode() []byte {
	payload := make([]byte, len(s.bits))
	copy(payload, s.bits)
	return payload
}

func (s *Bitmap) Copy() Segment {
	return NewBitmap(s.geo, s.number, s.key, s.bits)
}
