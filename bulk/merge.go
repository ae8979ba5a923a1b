package bulk

import (
	"container/heap"
	"errors"
	"io"

	"github.com/RogerMarsh/solentware-base-sub000/index"
	"github.com/RogerMarsh/solentware-base-sub000/queue"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
)

// MergeDumps streams the entries of several sorted chunk readers in global
// (value, segment) order, combining entries for the same pair from
// different chunks into one, and hands each combined entry to fn.
func MergeDumps(readers []*DumpReader, fn func(DumpEntry) error) error {
	q := &queue.MergeQueue{}
	heads := make([]DumpEntry, len(readers))

	// advance reads the next head of one stream into the heap.
	advance := func(src int) error {
		e, err := readers[src].Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		heads[src] = e
		heap.Push(q, &queue.MergeItem{Key: index.RowKey(e.Value, e.Segment), Src: src})
		return nil
	}

	heap.Init(q)
	for src := range readers {
		if err := advance(src); err != nil {
			return err
		}
	}

	var cur DumpEntry
	have := false
	for q.Len() > 0 {
		item := heap.Pop(q).(*queue.MergeItem)
		e := heads[item.Src]
		if err := advance(item.Src); err != nil {
			return err
		}

		if have && cur.Value == e.Value && cur.Segment == e.Segment {
			cur.Relatives = mergeRelatives(cur.Relatives, e.Relatives)
			continue
		}
		if have {
			if err := fn(cur); err != nil {
				return err
			}
		}
		cur, have = e, true
	}
	if have {
		return fn(cur)
	}
	return nil
}

// MergeInto replays merged chunk files into one index. Every entry is
// spliced, so rows written by earlier passes and the pre-existing high
// segment are merged rather than duplicated. It returns the number of
// rows written.
func MergeInto(x *index.Secondary, readers ...*DumpReader) (int, error) {
	geo := x.Geometry()
	rows := 0
	err := MergeDumps(readers, func(e DumpEntry) error {
		s := segment.FromMembers(geo, e.Segment, e.Value, e.Relatives...)
		if _, err := x.SpliceSegment(s); err != nil {
			return err
		}
		rows++
		return nil
	})
	return rows, err
}

// mergeRelatives unions two strictly ascending slices.
func mergeRelatives(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i, j = i+1, j+1
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
