// Package segment implements the three representations of one segment of an
// inverted index entry: a single record number, a sorted list of record
// numbers, and a fixed-size bitmap.
//
// A segment covers Geometry.SegmentSize consecutive record numbers. Which
// representation a segment uses is a pure function of its member count:
// one member is an Int, up to Geometry.ConversionLimit members a List,
// anything larger a Bitmap. Normalize applies that rule, Promote converts to
// the Bitmap form required by the set combinators.
//
// Cursor methods return absolute record numbers. A cursor exhausted by Next
// stays parked past the end, so a following Prev yields the true last
// member; the mirror holds for Prev then Next.
package segment

import (
	"strconv"

	"github.com/RogerMarsh/solentware-base-sub000/model"
)

// Segment is the capability contract shared by Int, List and Bitmap.
type Segment interface {
	// Number returns the segment number.
	Number() int
	// Key returns the index value this segment belongs to.
	Key() string
	// Count returns the exact member count.
	Count() int

	// First positions the cursor at the lowest member.
	First() (int, bool)
	// Last positions the cursor at the highest member.
	Last() (int, bool)
	// Next advances the cursor. At the end it reports false and parks the
	// cursor past the last member.
	Next() (int, bool)
	// Prev retreats the cursor. At the start it reports false and parks
	// the cursor before the first member.
	Prev() (int, bool)
	// Current returns the member under the cursor.
	Current() (int, bool)
	// SetAt positions the cursor at record if it is a member; otherwise
	// it reports false and leaves the cursor untouched.
	SetAt(record int) (int, bool)

	// PositionOf returns the number of members strictly below record.
	// For a member this is its 0-based rank.
	PositionOf(record int) int
	// RecordAt returns the member at the given non-negative offset from
	// the start (forward) or from the end (backward, 0 meaning the last
	// member).
	RecordAt(position int, forward bool) (int, bool)
	// Contains reports whether record is a member.
	Contains(record int) bool

	// Normalize returns the minimal-space representation for the current
	// count. It never mutates the receiver; it may return the receiver
	// itself when it is already minimal.
	Normalize() Segment
	// Promote returns the Bitmap form, the receiver itself if it already
	// is one.
	Promote() *Bitmap

	// Union, Intersect and SymmetricDifference combine two segments with
	// the same segment number into a fresh Bitmap.
	Union(other Segment) (*Bitmap, error)
	Intersect(other Segment) (*Bitmap, error)
	SymmetricDifference(other Segment) (*Bitmap, error)

	// Encode returns the on-disk payload for this representation.
	Encode() []byte
	// Copy returns a deep copy with an unset cursor.
	Copy() Segment

	// Geometry returns the record-number space this segment lives in.
	Geometry() model.Geometry
}

// cursorState tracks where a segment cursor is relative to the membership.
type cursorState uint8

const (
	cursorUnset  cursorState = iota
	cursorOn                 // at a member
	cursorBefore             // retreated past the first member
	cursorAfter              // advanced past the last member
)

func mismatch(op string, a, b Segment) error {
	if a.Number() == b.Number() {
		return nil
	}
	return model.NewOriginMismatch(op,
		"segment "+strconv.Itoa(a.Number()),
		"segment "+strconv.Itoa(b.Number()))
}
