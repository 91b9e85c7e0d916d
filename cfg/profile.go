// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

// neverExecutedCountThreshold bounds how small a block's absolute
// profile count can be before it is treated as never executed, absent
// any better signal. GCC's probably_never_executed_bb_p consults the
// function's entry count and a handful of special cases (EH landing
// pads, the cold-attribute, -fprofile-use fidelity); this module only
// has count and frequency to go on, so it collapses those cases to a
// check for zero count and zero frequency.
const neverExecutedCountThreshold = 0

// ProbablyNeverExecutedBB reports whether bb is expected to never run,
// the profile signal PartitionFixup uses to classify a block COLD.
// Corresponds to probably_never_executed_bb_p.
func ProbablyNeverExecutedBB(bb *BasicBlock) bool {
	if bb.IsEntry() || bb.IsExit() {
		return false
	}
	return bb.Count <= neverExecutedCountThreshold && bb.Frequency == 0
}

// MaybeHotBB reports whether bb might be hot enough that duplicating it
// to save a jump could still be worthwhile at code-size cost.
// Corresponds to maybe_hot_bb_p.
func MaybeHotBB(bb *BasicBlock) bool {
	return !ProbablyNeverExecutedBB(bb)
}
