// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout reorders a procedure's basic blocks to improve
// instruction-cache locality and optionally segregates cold blocks
// into a separate section, implementing the Software Trace Cache
// algorithm against the cfg package: one file per algorithm,
// pass-scoped state instead of globals, and aux side-tables instead of
// fields bolted onto the block itself.
package layout

import "github.com/cellarway/bbreorder/cfg"

// rbi holds the per-pass state GCC keeps directly on basic_block->rbi:
// the tentative forward link defining the layout order, the trace
// ordinal that first visited the block, and which trace (if any)
// starts or ends here. Keeping it off BasicBlock, in a dense
// side-table, keeps the pass's transient bookkeeping out of the
// persistent CFG data model.
type rbi struct {
	next    *cfg.BasicBlock
	visited int // 0 = unvisited, else 1-based trace ordinal

	startOfTrace int // trace ordinal if this block starts a trace, else -1
	endOfTrace   int // trace ordinal if this block ends a trace, else -1

	heap *PriorityHeap // heap currently holding this block, or nil
	node *heapNode     // this block's handle inside that heap
}

// BlockAux is the pass's parallel array, indexed by dense block index,
// that owns all of rbi's per-block bookkeeping. It is grown with
// amortised geometric growth on duplication rather than reallocated exactly to
// size every time, the same GET_ARRAY_SIZE(X) = ((X/4)+1)*5 growth
// policy GCC uses (~1.25x the size actually needed).
type BlockAux struct {
	entries []rbi
	base    int // offset subtracted from index before indexing entries
}

// NewBlockAux allocates a BlockAux sized for blocks whose indices lie
// in [0, lastBasicBlock).
func NewBlockAux(lastBasicBlock int) *BlockAux {
	a := &BlockAux{}
	a.grow(lastBasicBlock)
	return a
}

func sentinel() rbi { return rbi{startOfTrace: -1, endOfTrace: -1} }

// grow ensures entries can be indexed up to newSize-1, preserving
// existing entries and initialising new ones to the sentinel state.
func (a *BlockAux) grow(newSize int) {
	if newSize <= len(a.entries) {
		return
	}
	target := ((newSize/4 + 1) * 5)
	if target < newSize {
		target = newSize
	}
	grown := make([]rbi, target)
	copy(grown, a.entries)
	for i := len(a.entries); i < target; i++ {
		grown[i] = sentinel()
	}
	a.entries = grown
}

// get returns a pointer to bb's rbi entry, growing the table first if
// bb's index would otherwise be out of bounds (duplicate_block can
// create blocks beyond the size BlockAux was allocated at).
func (a *BlockAux) get(bb *cfg.BasicBlock) *rbi {
	if bb.Index >= len(a.entries) {
		a.grow(bb.Index + 1)
	}
	return &a.entries[bb.Index]
}

// LayoutNext returns the tentative forward link for bb, or nil if bb
// terminates its chain (so far).
func (a *BlockAux) LayoutNext(bb *cfg.BasicBlock) *cfg.BasicBlock {
	return a.get(bb).next
}

// SetLayoutNext sets bb's tentative forward link.
func (a *BlockAux) SetLayoutNext(bb, next *cfg.BasicBlock) {
	a.get(bb).next = next
}

// LayoutVisited returns the 1-based trace ordinal that first visited
// bb, or 0 if bb has not been visited by any trace yet.
func (a *BlockAux) LayoutVisited(bb *cfg.BasicBlock) int {
	return a.get(bb).visited
}

// MarkVisited records that bb was claimed by trace (1-based), and
// evicts bb from whichever heap currently holds it, mirroring
// mark_bb_visited, which deletes the fibheap node the instant a block
// is committed to a trace so it can never be extracted again.
func (a *BlockAux) MarkVisited(bb *cfg.BasicBlock, trace int) {
	e := a.get(bb)
	e.visited = trace
	if e.heap != nil {
		e.heap.Delete(e.node)
		e.heap = nil
		e.node = nil
	}
}

func (a *BlockAux) startOfTrace(bb *cfg.BasicBlock) int { return a.get(bb).startOfTrace }
func (a *BlockAux) endOfTrace(bb *cfg.BasicBlock) int   { return a.get(bb).endOfTrace }

func (a *BlockAux) setStartOfTrace(bb *cfg.BasicBlock, trace int) { a.get(bb).startOfTrace = trace }
func (a *BlockAux) setEndOfTrace(bb *cfg.BasicBlock, trace int)   { a.get(bb).endOfTrace = trace }

func (a *BlockAux) heapOf(bb *cfg.BasicBlock) (*PriorityHeap, *heapNode) {
	e := a.get(bb)
	return e.heap, e.node
}

func (a *BlockAux) setHeap(bb *cfg.BasicBlock, h *PriorityHeap, n *heapNode) {
	e := a.get(bb)
	e.heap = h
	e.node = n
}
