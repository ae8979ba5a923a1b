// Package recordset implements an ordered collection of index segments for
// one index value or one working combination of values.
//
// A RecordSet maps segment numbers to segments, keeps them in ascending
// order, and composes the per-segment cursor, position and set-algebra
// operations across that order. Set algebra is only defined between record
// sets created against the same database identity; anything else is a
// programmer error surfaced as a model.OriginMismatchError.
package recordset

import (
	"sort"

	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
)

// Origin names the database instance and primary table a record set's
// record numbers belong to. Database is the identity compared by set
// algebra.
type Origin struct {
	Database string
	Table    string
}

// RecordSet is an ordered set of non-empty segments plus a composed cursor.
// It is not safe for concurrent use; callers serialise per instance.
type RecordSet struct {
	geo      model.Geometry
	origin   Origin
	segments map[int]segment.Segment
	sorted   []int
	cur      int // index into sorted, -1 when the cursor is unset
}

// New returns an empty record set for the given geometry and origin.
func New(geo model.Geometry, origin Origin) *RecordSet {
	return &RecordSet{
		geo:      geo,
		origin:   origin,
		segments: make(map[int]segment.Segment),
		cur:      -1,
	}
}

func (r *RecordSet) Geometry() model.Geometry { return r.geo }
func (r *RecordSet) Origin() Origin           { return r.origin }

// Len returns the number of segments held.
func (r *RecordSet) Len() int { return len(r.segments) }

// Count returns the total number of records across all segments.
func (r *RecordSet) Count() int {
	n := 0
	for _, s := range r.segments {
		n += s.Count()
	}
	return n
}

// Segment returns the segment with the given number.
func (r *RecordSet) Segment(number int) (segment.Segment, bool) {
	s, ok := r.segments[number]
	return s, ok
}

// SegmentNumbers returns the segment numbers in ascending order.
func (r *RecordSet) SegmentNumbers() []int {
	out := make([]int, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// HasSegment reports whether a segment with the given number is held.
func (r *RecordSet) HasSegment(number int) bool {
	_, ok := r.segments[number]
	return ok
}

// SetSegment stores s under its own segment number, replacing any previous
// holder. An empty segment removes the entry instead: the set never stores
// a segment with no members.
func (r *RecordSet) SetSegment(s segment.Segment) {
	n := s.Number()
	if s.Count() == 0 {
		r.RemoveSegment(n)
		return
	}
	if _, ok := r.segments[n]; !ok {
		i := sort.SearchInts(r.sorted, n)
		r.sorted = append(r.sorted, 0)
		copy(r.sorted[i+1:], r.sorted[i:])
		r.sorted[i] = n
	}
	r.segments[n] = s
}

// RemoveSegment drops the segment with the given number. A cursor pointing
// past the new end is pulled back onto the last segment.
func (r *RecordSet) RemoveSegment(number int) {
	if _, ok := r.segments[number]; !ok {
		return
	}
	delete(r.segments, number)
	i := sort.SearchInts(r.sorted, number)
	r.sorted = append(r.sorted[:i], r.sorted[i+1:]...)
	if r.cur >= len(r.sorted) {
		r.cur = len(r.sorted) - 1
	}
}

// Close drops every segment and resets the cursor. The set stays usable but
// empty; calling Close again is harmless.
func (r *RecordSet) Close() {
	r.segments = make(map[int]segment.Segment)
	r.sorted = r.sorted[:0]
	r.cur = -1
}

// First positions the cursor at the lowest record.
func (r *RecordSet) First() (int, bool) {
	if len(r.sorted) == 0 {
		return 0, false
	}
	r.cur = 0
	return r.segments[r.sorted[0]].First()
}

// Last positions the cursor at the highest record.
func (r *RecordSet) Last() (int, bool) {
	if len(r.sorted) == 0 {
		return 0, false
	}
	r.cur = len(r.sorted) - 1
	return r.segments[r.sorted[r.cur]].Last()
}

// Next advances the cursor, falling through to the following segment when
// the current one is exhausted.
func (r *RecordSet) Next() (int, bool) {
	if r.cur < 0 {
		return r.First()
	}
	if rec, ok := r.segments[r.sorted[r.cur]].Next(); ok {
		return rec, true
	}
	if r.cur+1 >= len(r.sorted) {
		return 0, false
	}
	r.cur++
	return r.segments[r.sorted[r.cur]].First()
}

// Prev retreats the cursor, falling through to the preceding segment when
// the current one is exhausted.
func (r *RecordSet) Prev() (int, bool) {
	if r.cur < 0 {
		return r.Last()
	}
	if rec, ok := r.segments[r.sorted[r.cur]].Prev(); ok {
		return rec, true
	}
	if r.cur == 0 {
		return 0, false
	}
	r.cur--
	return r.segments[r.sorted[r.cur]].Last()
}

// Current returns the record under the cursor.
func (r *RecordSet) Current() (int, bool) {
	if r.cur < 0 {
		return 0, false
	}
	return r.segments[r.sorted[r.cur]].Current()
}

// SetAt positions the cursor at record if present; otherwise it reports
// false and leaves the cursor untouched.
func (r *RecordSet) SetAt(record int) (int, bool) {
	number, _ := r.geo.Split(record)
	s, ok := r.segments[number]
	if !ok {
		return 0, false
	}
	rec, ok := s.SetAt(record)
	if !ok {
		return 0, false
	}
	r.cur = sort.SearchInts(r.sorted, number)
	return rec, true
}

// Contains reports whether record is a member.
func (r *RecordSet) Contains(record int) bool {
	number, _ := r.geo.Split(record)
	s, ok := r.segments[number]
	return ok && s.Contains(record)
}

// PositionOf returns the number of members strictly below record: the
// 0-based rank when record is itself a member.
func (r *RecordSet) PositionOf(record int) int {
	number, _ := r.geo.Split(record)
	position := 0
	if s, ok := r.segments[number]; ok {
		position = s.PositionOf(record)
	}
	for _, n := range r.sorted {
		if n >= number {
			break
		}
		position += r.segments[n].Count()
	}
	return position
}

// RecordAt returns the member at the given position: 0-based from the start
// for position >= 0, from the end for negative positions (-1 is the last
// member).
func (r *RecordSet) RecordAt(position int) (int, bool) {
	forward := position >= 0
	offset := position
	if !forward {
		offset = -position - 1
	}
	walked := 0
	for i := range r.sorted {
		n := r.sorted[i]
		if !forward {
			n = r.sorted[len(r.sorted)-i-1]
		}
		s := r.segments[n]
		c := s.Count()
		if walked+c > offset {
			return s.RecordAt(offset-walked, forward)
		}
		walked += c
	}
	return 0, false
}

// Normalize replaces every segment with its minimal-space representation.
func (r *RecordSet) Normalize() {
	for _, n := range r.sorted {
		r.segments[n] = r.segments[n].Normalize()
	}
}

// Copy returns a deep copy sharing no segment storage, with an unset
// cursor.
func (r *RecordSet) Copy() *RecordSet {
	out := New(r.geo, r.origin)
	for _, n := range r.sorted {
		out.SetSegment(r.segments[n].Copy())
	}
	return out
}

func (r *RecordSet) checkOrigin(op string, other *RecordSet) error {
	if r.origin.Database == other.origin.Database {
		return nil
	}
	return model.NewOriginMismatch(op, r.origin.Database, other.origin.Database)
}

// Or returns the union of the two record sets.
func (r *RecordSet) Or(other *RecordSet) (*RecordSet, error) {
	if err := r.checkOrigin("or", other); err != nil {
		return nil, err
	}
	out := New(r.geo, r.origin)
	for _, n := range r.sorted {
		mine := r.segments[n]
		if theirs, ok := other.segments[n]; ok {
			u, err := mine.Union(theirs)
			if err != nil {
				return nil, err
			}
			out.SetSegment(u)
		} else {
			out.SetSegment(mine.Copy())
		}
	}
	for _, n := range other.sorted {
		if !r.HasSegment(n) {
			out.SetSegment(other.segments[n].Copy())
		}
	}
	return out, nil
}

// And returns the intersection of the two record sets. Segments emptied by
// the intersection are absent from the result.
func (r *RecordSet) And(other *RecordSet) (*RecordSet, error) {
	if err := r.checkOrigin("and", other); err != nil {
		return nil, err
	}
	out := New(r.geo, r.origin)
	for _, n := range r.sorted {
		theirs, ok := other.segments[n]
		if !ok {
			continue
		}
		i, err := r.segments[n].Intersect(theirs)
		if err != nil {
			return nil, err
		}
		out.SetSegment(i)
	}
	return out, nil
}

// Xor returns the symmetric difference of the two record sets.
func (r *RecordSet) Xor(other *RecordSet) (*RecordSet, error) {
	if err := r.checkOrigin("xor", other); err != nil {
		return nil, err
	}
	out := New(r.geo, r.origin)
	for _, n := range r.sorted {
		mine := r.segments[n]
		if theirs, ok := other.segments[n]; ok {
			x, err := mine.SymmetricDifference(theirs)
			if err != nil {
				return nil, err
			}
			out.SetSegment(x)
		} else {
			out.SetSegment(mine.Copy())
		}
	}
	for _, n := range other.sorted {
		if !r.HasSegment(n) {
			out.SetSegment(other.segments[n].Copy())
		}
	}
	return out, nil
}

// OrWith merges other into the receiver. Segments already in Bitmap form
// are updated in place without copying.
func (r *RecordSet) OrWith(other *RecordSet) error {
	if err := r.checkOrigin("or", other); err != nil {
		return err
	}
	for _, n := range other.sorted {
		theirs := other.segments[n]
		mine, ok := r.segments[n]
		if !ok {
			r.SetSegment(theirs.Copy())
			continue
		}
		if bm, isBitmap := mine.(*segment.Bitmap); isBitmap {
			if err := bm.OrWith(theirs); err != nil {
				return err
			}
			continue
		}
		u, err := mine.Union(theirs)
		if err != nil {
			return err
		}
		r.segments[n] = u
	}
	return nil
}

// AndWith intersects the receiver with other in place.
func (r *RecordSet) AndWith(other *RecordSet) error {
	if err := r.checkOrigin("and", other); err != nil {
		return err
	}
	for _, n := range r.SegmentNumbers() {
		theirs, ok := other.segments[n]
		if !ok {
			r.RemoveSegment(n)
			continue
		}
		mine := r.segments[n]
		if bm, isBitmap := mine.(*segment.Bitmap); isBitmap {
			if err := bm.AndWith(theirs); err != nil {
				return err
			}
			if bm.Count() == 0 {
				r.RemoveSegment(n)
			}
			continue
		}
		i, err := mine.Intersect(theirs)
		if err != nil {
			return err
		}
		if i.Count() == 0 {
			r.RemoveSegment(n)
		} else {
			r.segments[n] = i
		}
	}
	return nil
}

// XorWith replaces the receiver with the symmetric difference in place.
func (r *RecordSet) XorWith(other *RecordSet) error {
	if err := r.checkOrigin("xor", other); err != nil {
		return err
	}
	for _, n := range other.sorted {
		theirs := other.segments[n]
		mine, ok := r.segments[n]
		if !ok {
			r.SetSegment(theirs.Copy())
			continue
		}
		if bm, isBitmap := mine.(*segment.Bitmap); isBitmap {
			if err := bm.XorWith(theirs); err != nil {
				return err
			}
			if bm.Count() == 0 {
				r.RemoveSegment(n)
			}
			continue
		}
		x, err := mine.SymmetricDifference(theirs)
		if err != nil {
			return err
		}
		if x.Count() == 0 {
			r.RemoveSegment(n)
		} else {
			r.segments[n] = x
		}
	}
	return nil
}
