package recordset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
)

var testOrigin = Origin{Database: "db-1", Table: "games"}

func collect(r *RecordSet) []int {
	c := r.Copy()
	var out []int
	for rec, ok := c.First(); ok; rec, ok = c.Next() {
		out = append(out, rec)
	}
	return out
}

// Geometry of 24 slots puts record 50 in segment 2.
func sparseSet(t *testing.T) *RecordSet {
	t.Helper()
	geo := model.Geometry{SegmentSize: 24, ConversionLimit: 4}
	r := New(geo, testOrigin)
	bm := segment.NewBitmap(geo, 0, "v", nil)
	for _, rel := range []int{1, 2, 3} {
		bm.Set(rel)
	}
	r.SetSegment(bm)
	r.SetSegment(segment.NewInt(geo, 2, "v", 2)) // record 50
	return r
}

func TestPositionAcrossSegments(t *testing.T) {
	r := sparseSet(t)

	assert.Equal(t, 4, r.Count())
	assert.Equal(t, 3, r.PositionOf(50))

	rec, ok := r.RecordAt(3)
	require.True(t, ok)
	assert.Equal(t, 50, rec)

	rec, ok = r.RecordAt(-1)
	require.True(t, ok)
	assert.Equal(t, 50, rec)

	rec, ok = r.RecordAt(-4)
	require.True(t, ok)
	assert.Equal(t, 1, rec)

	_, ok = r.RecordAt(4)
	assert.False(t, ok)
	_, ok = r.RecordAt(-5)
	assert.False(t, ok)

	// Inverse law over every member.
	for i, m := range collect(r) {
		assert.Equal(t, i, r.PositionOf(m))
		rec, ok := r.RecordAt(i)
		require.True(t, ok)
		assert.Equal(t, m, rec)
	}
}

func TestCursorFallsThroughSegments(t *testing.T) {
	r := sparseSet(t)

	assert.Equal(t, []int{1, 2, 3, 50}, collect(r))

	// Walk to exhaustion, then step back onto the true last member even
	// though it lives in another segment than the bulk of the walk.
	for _, ok := r.First(); ok; _, ok = r.Next() {
	}
	_, ok := r.Next()
	assert.False(t, ok)
	rec, ok := r.Prev()
	require.True(t, ok)
	assert.Equal(t, 50, rec)

	// Continue backwards across the segment gap.
	rec, ok = r.Prev()
	require.True(t, ok)
	assert.Equal(t, 3, rec)
}

func TestSetAtAbsentKeepsPosition(t *testing.T) {
	r := sparseSet(t)
	rec, ok := r.First()
	require.True(t, ok)
	require.Equal(t, 1, rec)

	_, ok = r.SetAt(30) // segment 1 holds nothing
	assert.False(t, ok)
	_, ok = r.SetAt(4) // segment 0 exists, record does not
	assert.False(t, ok)

	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, 1, cur)

	rec, ok = r.SetAt(50)
	require.True(t, ok)
	assert.Equal(t, 50, rec)
	rec, _ = r.Current()
	assert.Equal(t, 50, rec)
}

func TestRemoveSegmentClampsCursor(t *testing.T) {
	r := sparseSet(t)
	_, ok := r.SetAt(50)
	require.True(t, ok)

	r.RemoveSegment(2)
	assert.Equal(t, 3, r.Count())

	// The cursor was pulled back onto the remaining segment, whose own
	// cursor is unset, so Prev lands on its last member.
	rec, ok := r.Prev()
	require.True(t, ok)
	assert.Equal(t, 3, rec)

	r.RemoveSegment(0)
	assert.Equal(t, 0, r.Count())
	_, ok = r.First()
	assert.False(t, ok)
}

func algebraPair(t *testing.T) (*RecordSet, *RecordSet) {
	t.Helper()
	geo := model.Geometry{SegmentSize: 16, ConversionLimit: 4}
	a := New(geo, testOrigin)
	a.SetSegment(segment.NewList(geo, 0, "a", 1, 3, 5))
	a.SetSegment(segment.NewInt(geo, 1, "a", 0)) // record 16

	b := New(geo, testOrigin)
	b.SetSegment(segment.NewList(geo, 0, "b", 3, 4))
	b.SetSegment(segment.NewInt(geo, 2, "b", 1)) // record 33
	return a, b
}

func TestSetAlgebra(t *testing.T) {
	a, b := algebraPair(t)

	or, err := a.Or(b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4, 5, 16, 33}, collect(or))

	and, err := a.And(b)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, collect(and))
	assert.Equal(t, 1, and.Len(), "segments emptied by intersection are dropped")

	xor, err := a.Xor(b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 5, 16, 33}, collect(xor))

	// Operands survive untouched.
	assert.Equal(t, []int{1, 3, 5, 16}, collect(a))
	assert.Equal(t, []int{3, 4, 33}, collect(b))
}

func TestSetAlgebraInPlace(t *testing.T) {
	a, b := algebraPair(t)
	require.NoError(t, a.OrWith(b))
	assert.Equal(t, []int{1, 3, 4, 5, 16, 33}, collect(a))

	a, b = algebraPair(t)
	require.NoError(t, a.AndWith(b))
	assert.Equal(t, []int{3}, collect(a))
	assert.Equal(t, 1, a.Len())

	a, b = algebraPair(t)
	require.NoError(t, a.XorWith(b))
	assert.Equal(t, []int{1, 4, 5, 16, 33}, collect(a))

	// Xor with itself empties the set entirely.
	a, _ = algebraPair(t)
	other := a.Copy()
	require.NoError(t, a.XorWith(other))
	assert.Equal(t, 0, a.Count())
	assert.Equal(t, 0, a.Len())
}

func TestAlgebraOriginMismatch(t *testing.T) {
	geo := model.Geometry{SegmentSize: 16, ConversionLimit: 4}
	a := New(geo, Origin{Database: "db-1", Table: "games"})
	b := New(geo, Origin{Database: "db-2", Table: "games"})

	var mm *model.OriginMismatchError
	_, err := a.Or(b)
	require.ErrorAs(t, err, &mm)
	_, err = a.And(b)
	assert.ErrorAs(t, err, &mm)
	_, err = a.Xor(b)
	assert.ErrorAs(t, err, &mm)
	assert.ErrorAs(t, a.OrWith(b), &mm)
	assert.ErrorAs(t, a.AndWith(b), &mm)
	assert.ErrorAs(t, a.XorWith(b), &mm)
}

func TestNormalizeAllSegments(t *testing.T) {
	geo := model.Geometry{SegmentSize: 16, ConversionLimit: 4}
	r := New(geo, testOrigin)

	one := segment.NewBitmap(geo, 0, "v", nil)
	one.Set(7)
	r.SetSegment(one)
	three := segment.NewBitmap(geo, 1, "v", nil)
	for _, rel := range []int{1, 2, 3} {
		three.Set(geo.Join(1, rel))
	}
	r.SetSegment(three)

	r.Normalize()
	s, _ := r.Segment(0)
	assert.IsType(t, &segment.Int{}, s)
	s, _ = r.Segment(1)
	assert.IsType(t, &segment.List{}, s)
	assert.Equal(t, []int{7, 17, 18, 19}, collect(r))
}

func TestSetSegmentDropsEmpty(t *testing.T) {
	geo := model.Geometry{SegmentSize: 16, ConversionLimit: 4}
	r := New(geo, testOrigin)
	r.SetSegment(segment.NewInt(geo, 0, "v", 1))
	require.Equal(t, 1, r.Len())

	r.SetSegment(segment.NewBitmap(geo, 0, "v", nil))
	assert.Equal(t, 0, r.Len(), "an empty replacement removes the segment")
	assert.False(t, r.HasSegment(0))
}
