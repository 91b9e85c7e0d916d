// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cfg is the external control-flow-graph substrate that the
// reordering pass in internal/layout observes and mutates. It plays the
// role that basic-block.h and cfglayout.h play for gcc/bb-reorder.c:
// construction, liveness, and instruction selection are assumed to have
// already happened, and this package only exposes the handful of
// operations the reordering pass needs.
package cfg

// Partition classifies a block as expected (HOT) or not expected (COLD)
// to execute, driving section placement by PartitionFixup.
type Partition uint8

const (
	Hot Partition = iota
	Cold
)

func (p Partition) String() string {
	if p == Cold {
		return "cold"
	}
	return "hot"
}

// ProbBase is the fixed denominator for Edge.Probability, matching
// REG_BR_PROB_BASE in GCC.
const ProbBase = 10000

// BasicBlock is a maximal straight-line sequence of instructions with a
// single entry and a single exit. The reordering pass treats Index,
// Frequency, Count, Succs, Preds, and Jump as read-mostly inputs, and
// Partition and the instruction stream as the fields it is allowed to
// rewrite.
type BasicBlock struct {
	// Index is a dense integer ID, stable within a pass. ENTRY and EXIT
	// use the sentinel indices EntryIndex and ExitIndex.
	Index int

	// Frequency is a relative execution count; the entry block's
	// successors set the scale (see Func.MaxEntryFrequency).
	Frequency int

	// Count is a 64-bit profile-derived absolute execution count.
	Count uint64

	// Partition is assigned by PartitionFixup; zero value is Hot.
	Partition Partition

	Succs []*Edge
	Preds []*Edge

	// NextBB/PrevBB is the natural (pre-reordering) CFG order; the
	// reordering pass never mutates this, only reads it (e.g. to test
	// whether an edge's destination is the CFG-immediate successor).
	NextBB, PrevBB *BasicBlock

	// Jump describes how control leaves the block, or nil if the block
	// falls through to whatever follows it in layout order. This stands
	// in for a real backend's tail instruction(s); see Jump for detail.
	Jump *Jump

	// Label is a human-readable block label, lazily assigned by
	// BlockLabel when a branch needs to reference the block by name.
	Label string

	// Footer holds instructions detached from the block's tail by
	// layout rewrites (e.g. a barrier emitted after a forced jump) and
	// reattached by the downstream emitter; the pass never interprets
	// its contents.
	Footer []string

	f *Func
}

// Func returns the graph this block belongs to.
func (b *BasicBlock) Func() *Func { return b.f }

// IsEntry reports whether b is the function's ENTRY sentinel.
func (b *BasicBlock) IsEntry() bool { return b.Index == EntryIndex }

// IsExit reports whether b is the function's EXIT sentinel.
func (b *BasicBlock) IsExit() bool { return b.Index == ExitIndex }

// JumpKind enumerates how a block's Jump instruction transfers control.
type JumpKind uint8

const (
	// JumpNone is not a valid JumpKind; a nil *Jump means fall-through.
	JumpNone JumpKind = iota
	JumpCond
	JumpUncond
	JumpIndirect
	JumpTable
	JumpReturn
)

// Jump is the minimal stand-in for a real backend's jump instruction(s),
// sufficient for PartitionFixup to add labels, invert conditions, and
// lower crossing branches to indirect jumps without a real target
// backend. Length is the encoded instruction length in the same units
// as Target.UncondJumpLength, used by copy_bb_p-style size checks.
type Jump struct {
	Kind JumpKind
	// Taken is the edge taken when a conditional branch's condition
	// holds, or the sole destination of an unconditional/table jump.
	// Nil for a JumpReturn that ends the function; a return trampoline
	// built by PartitionFixup keeps the edge to the block it stands in
	// for.
	Taken *Edge
	// Inverted records whether InvertJump has flipped the sense of a
	// conditional; used only for diagnostics/tests.
	Inverted bool
	Length   int
}
