// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import (
	"container/heap"

	"github.com/cellarway/bbreorder/cfg"
)

// heapNode is one entry in a PriorityHeap: a block and the key it was
// last inserted or replaced with. Lower keys sort first; TraceBuilder
// uses negative frequency as the key so the highest-frequency block is
// always the minimum. seq breaks ties by insertion order, since
// container/heap is not a stable sort and the trace order this
// produces is observable.
type heapNode struct {
	bb    *cfg.BasicBlock
	key   int64
	seq   int64
	index int // position in the backing slice, maintained by container/heap
}

// innerHeap is the container/heap.Interface implementation; PriorityHeap
// wraps it to give callers an insert/extract-min/decrease-key API
// instead of container/heap's slice-mutation contract.
type innerHeap []*heapNode

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].seq < h[j].seq
}
func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *innerHeap) Push(x any) {
	n := x.(*heapNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// PriorityHeap is a decrease-key priority queue of blocks, keyed by an
// int64 priority supplied by the caller (TraceBuilder uses negative
// frequency, so the most-frequent unvisited block is always the
// minimum). It plays the role bb-reorder.c's per-round fibheap plays,
// but as an indexed binary heap over container/heap: every inserted
// node keeps a stable handle that supports both decrease-key
// (ReplaceKey) and arbitrary removal (Delete) in O(log n), the two
// operations a fibheap offers that a plain container/heap.Interface
// does not expose directly.
type PriorityHeap struct {
	h       innerHeap
	nextSeq int64
}

// NewPriorityHeap returns an empty heap.
func NewPriorityHeap() *PriorityHeap {
	ph := &PriorityHeap{}
	heap.Init(&ph.h)
	return ph
}

// Empty reports whether the heap currently holds no nodes.
func (p *PriorityHeap) Empty() bool { return p.h.Len() == 0 }

// Insert adds bb with the given key and returns the handle needed for
// later ReplaceKey/Delete calls.
func (p *PriorityHeap) Insert(bb *cfg.BasicBlock, key int64) *heapNode {
	n := &heapNode{bb: bb, key: key, seq: p.nextSeq}
	p.nextSeq++
	heap.Push(&p.h, n)
	return n
}

// ExtractMin removes and returns the block with the smallest key, or
// nil if the heap is empty.
func (p *PriorityHeap) ExtractMin() *cfg.BasicBlock {
	if p.Empty() {
		return nil
	}
	n := heap.Pop(&p.h).(*heapNode)
	return n.bb
}

// ReplaceKey lowers (or raises) n's key in place, the decrease-key
// operation bb_to_key's "found a better predecessor, update its
// position" path relies on.
func (p *PriorityHeap) ReplaceKey(n *heapNode, key int64) {
	n.key = key
	heap.Fix(&p.h, n.index)
}

// Delete removes n from the heap regardless of its key, used by
// BlockAux.MarkVisited to evict a block the instant it is claimed by a
// trace.
func (p *PriorityHeap) Delete(n *heapNode) {
	if n.index < 0 || n.index >= len(p.h) {
		return
	}
	heap.Remove(&p.h, n.index)
}
