// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import "fmt"

// MakeEdge creates and links a new edge from src to dest, appending it
// to both adjacency lists. Corresponds to make_edge.
func (f *Func) MakeEdge(src, dest *BasicBlock, probability int, count uint64, flags EdgeFlags) *Edge {
	e := &Edge{Src: src, Dest: dest, Probability: probability, Count: count, Flags: flags}
	src.Succs = append(src.Succs, e)
	dest.Preds = append(dest.Preds, e)
	return e
}

// RedirectEdgeSucc repoints e's destination to newDest, updating both
// endpoints' adjacency lists. Corresponds to redirect_edge_succ.
func (f *Func) RedirectEdgeSucc(e *Edge, newDest *BasicBlock) {
	e.Dest.Preds = removeEdgeVal(e.Dest.Preds, e)
	e.Dest = newDest
	newDest.Preds = append(newDest.Preds, e)
}

func removeEdgeVal(list []*Edge, e *Edge) []*Edge {
	out := list[:0]
	for _, cur := range list {
		if cur != e {
			out = append(out, cur)
		}
	}
	return out
}

// CreateBasicBlock allocates a new, empty block and appends it to the
// natural order. It does not link any edges; callers wire those with
// MakeEdge. Corresponds to create_basic_block.
func (f *Func) CreateBasicBlock() *BasicBlock {
	b := &BasicBlock{}
	f.AddBlock(b)
	return b
}

// CanDuplicateBlock reports whether the backend permits duplicating bb
// at all (as opposed to copy_bb_p's further size/frequency gating).
// The in-memory CFG used by this module has no backend-specific
// restriction, so this is always true; a real target (e.g. one with
// blocks containing non-duplicable EH landing-pad state) would
// override it. Corresponds to can_duplicate_block_p.
func (f *Func) CanDuplicateBlock(bb *BasicBlock) bool {
	return true
}

// DuplicateBlock creates a copy of old with the same Jump shape and
// Footer, redirects e to the copy, and returns it. It is the pass's
// only way to grow the block count; BlockAux must be grown to match.
// Corresponds to duplicate_block.
func (f *Func) DuplicateBlock(old *BasicBlock, e *Edge) *BasicBlock {
	nb := f.CreateBasicBlock()
	nb.Frequency = old.Frequency
	nb.Count = old.Count
	nb.Partition = old.Partition
	if old.Jump != nil {
		j := *old.Jump
		nb.Jump = &j
	}
	nb.Footer = append([]string(nil), old.Footer...)

	for _, se := range old.Succs {
		f.MakeEdge(nb, se.Dest, se.Probability, se.Count, se.Flags)
	}
	f.RedirectEdgeSucc(e, nb)
	if nb.Jump != nil && nb.Jump.Taken != nil {
		for _, ne := range nb.Succs {
			if ne.Dest == nb.Jump.Taken.Dest {
				nb.Jump.Taken = ne
				break
			}
		}
	}
	return nb
}

// ForceNonFallthru breaks a fall-through edge by inserting a new block
// that the edge's source falls into and that itself jumps
// unconditionally to the original destination. Returns the new block,
// or nil if e was not actually a fall-through edge needing one (mirrors
// force_nonfallthru returning NULL when no new block was required).
func (f *Func) ForceNonFallthru(e *Edge) *BasicBlock {
	if !e.Flags.Has(Fallthru) {
		return nil
	}
	nb := &BasicBlock{}
	f.InsertBlockAfter(nb, e.Src)

	dest := e.Dest
	f.RedirectEdgeSucc(e, nb)
	e.Flags |= CanFallthru | Fallthru

	ne := f.MakeEdge(nb, dest, ProbBase, e.Count, CanFallthru)
	nb.Jump = &Jump{Kind: JumpUncond, Taken: ne}
	return nb
}

// BlockLabel returns bb's label, assigning a synthetic one on first use
// (every crossing-edge destination needs one; see
// add_labels_and_missing_jumps). Corresponds to block_label.
func (f *Func) BlockLabel(bb *BasicBlock) string {
	if bb.Label == "" {
		bb.Label = fmt.Sprintf(".L%d", bb.Index)
	}
	return bb.Label
}
