// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

// EdgeFlags is a bitset of control-flow-edge properties, matching the
// EDGE_* flags consulted throughout gcc/bb-reorder.c.
type EdgeFlags uint8

const (
	// CanFallthru marks an edge whose destination could in principle
	// immediately follow the source in layout order.
	CanFallthru EdgeFlags = 1 << iota
	// Fallthru marks an edge that currently does fall through (the
	// destination is laid out immediately after the source and no
	// branch instruction is needed).
	Fallthru
	// Complex marks an abnormal edge: EH, a sibling call, or any other
	// edge the reordering pass must leave untouched.
	Complex
	// DFSBack marks a precomputed back edge (loop-closing edge).
	DFSBack
	// Fake marks a profile-only edge with no corresponding branch.
	Fake
)

func (f EdgeFlags) Has(flag EdgeFlags) bool { return f&flag != 0 }

// Edge is a directed control-flow edge. Src or Dest may be the
// function's ENTRY/EXIT sentinel, but never both a crossing edge's
// endpoints (see Crossing).
type Edge struct {
	Src, Dest *BasicBlock

	// Probability is in [0, ProbBase]; the likelihood this edge is
	// taken given that Src executes.
	Probability int

	// Count is the profile-derived absolute count along this edge.
	Count uint64

	Flags EdgeFlags

	// Crossing is set by PartitionFixup when Src and Dest lie in
	// different partitions. Never true for an edge touching ENTRY/EXIT.
	Crossing bool
}

// Frequency returns EDGE_FREQUENCY(e): the source's frequency scaled by
// the edge's probability, rounded the same way GCC's EDGE_FREQUENCY
// macro does. This is what every call site in bb-reorder.c actually
// wants: an estimate of how often this particular edge fires.
func (e *Edge) Frequency() int {
	if e.Src == nil {
		return 0
	}
	return (e.Src.Frequency*e.Probability + ProbBase/2) / ProbBase
}
