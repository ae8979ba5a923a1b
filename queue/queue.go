// Package queue provides the ordering heap behind k-way merges of sorted
// index dump streams.
package queue

import (
	"bytes"
	"container/heap"
)

// Compile time check to ensure MergeQueue satisfies the heap interface.
var _ heap.Interface = (*MergeQueue)(nil)

// MergeItem represents one stream head waiting in the merge order.
type MergeItem struct {
	Key   []byte // Key is the head entry's sort key.
	Src   int    // Src identifies which stream the head came from.
	Index int    // Index is maintained by the heap.Interface methods.
}

// MergeQueue implements heap.Interface over stream heads, lowest key
// first. Equal keys pop in ascending Src order so a merge of overlapping
// streams is deterministic.
type MergeQueue struct {
	Items []*MergeItem // Items contains the waiting stream heads.
}

// Len returns the number of waiting stream heads.
func (q *MergeQueue) Len() int { return len(q.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (q *MergeQueue) Less(i, j int) bool {
	if c := bytes.Compare(q.Items[i].Key, q.Items[j].Key); c != 0 {
		return c < 0
	}
	return q.Items[i].Src < q.Items[j].Src
}

// Swap swaps the elements with indexes i and j.
func (q *MergeQueue) Swap(i, j int) {
	q.Items[i], q.Items[j] = q.Items[j], q.Items[i]
	q.Items[i].Index, q.Items[j].Index = i, j // Update indices
}

// Push adds x to the queue.
func (q *MergeQueue) Push(x any) {
	item, _ := x.(*MergeItem)
	item.Index = len(q.Items)
	q.Items = append(q.Items, item)
}

// Pop removes and returns the lowest-key stream head.
func (q *MergeQueue) Pop() any {
	old := q.Items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil      // Avoid memory leak
	item.Index = -1     // For safety
	q.Items = old[:n-1] // Reslice without creating a new underlying array

	return item
}

// Top returns the lowest-key stream head without removing it.
func (q *MergeQueue) Top() *MergeItem {
	return q.Items[0]
}
