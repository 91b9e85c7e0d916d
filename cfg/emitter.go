// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

// Emitter is the instruction-level collaborator PartitionFixup uses to
// rewrite branches. It groups what GCC exposes as separate free
// functions (any_condjump_p, invert_jump, emit_jump_insn_*,
// emit_barrier_*, ...) into one small interface, so the pass can be
// tested against an in-memory CFG without a real assembler, and a real
// backend can satisfy the same contract by wrapping its own instruction
// stream.
type Emitter interface {
	// InvertJump flips the sense of bb's conditional jump in place,
	// swapping which successor is "taken". Reports whether the
	// inversion succeeded (some conditions are not invertible on some
	// targets; see any_condjump_p/invert_jump).
	InvertJump(bb *BasicBlock) bool

	// EmitUncondJumpAtTail appends an unconditional jump to target at
	// bb's tail (used when a block falls through but needs to jump
	// across a partition boundary), followed by a barrier detached into
	// bb's Footer, matching add_labels_and_missing_jumps.
	EmitUncondJumpAtTail(bb *BasicBlock, target *BasicBlock)

	// EmitBarrierAtTail appends a bare barrier to bb's tail, detached
	// into its Footer. Used by fix_up_fall_thru_edges after splitting a
	// crossing fall-through.
	EmitBarrierAtTail(bb *BasicBlock)

	// LowerToIndirectJump replaces bb's unconditional jump with
	// `mov reg, &label; indirect_jump reg`, for targets without a long
	// unconditional branch. Corresponds to
	// fix_crossing_unconditional_branches's synthesis step.
	LowerToIndirectJump(bb *BasicBlock, target *BasicBlock)

	// AttrLength returns the encoded length of bb's terminating
	// instruction(s), for copy_bb_p's size budget. Corresponds to
	// get_attr_length.
	AttrLength(bb *BasicBlock) int
}

// BasicEmitter is the in-memory Emitter backing the demo CFG and the
// test suite. It mutates BasicBlock.Jump/Footer directly instead of a
// real instruction stream.
type BasicEmitter struct{}

func (BasicEmitter) InvertJump(bb *BasicBlock) bool {
	j := bb.Jump
	if j == nil || j.Kind != JumpCond || len(bb.Succs) != 2 {
		return false
	}
	var other *Edge
	for _, e := range bb.Succs {
		if e != j.Taken {
			other = e
		}
	}
	if other == nil {
		return false
	}
	j.Taken = other
	j.Inverted = !j.Inverted
	return true
}

func (BasicEmitter) EmitUncondJumpAtTail(bb *BasicBlock, target *BasicBlock) {
	var taken *Edge
	for _, e := range bb.Succs {
		if e.Dest == target {
			taken = e
			break
		}
	}
	bb.Jump = &Jump{Kind: JumpUncond, Taken: taken, Length: 1}
	bb.Footer = append(bb.Footer, "barrier")
}

func (BasicEmitter) EmitBarrierAtTail(bb *BasicBlock) {
	bb.Footer = append(bb.Footer, "barrier")
}

func (BasicEmitter) LowerToIndirectJump(bb *BasicBlock, target *BasicBlock) {
	var taken *Edge
	for _, e := range bb.Succs {
		if e.Dest == target {
			taken = e
			break
		}
	}
	bb.Jump = &Jump{Kind: JumpIndirect, Taken: taken, Length: 2}
}

func (BasicEmitter) AttrLength(bb *BasicBlock) int {
	if bb.Jump != nil && bb.Jump.Length > 0 {
		return bb.Jump.Length
	}
	return 1
}
