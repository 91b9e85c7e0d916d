// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import "fmt"

// EntryIndex and ExitIndex are the dense indices reserved for the
// ENTRY and EXIT sentinel blocks, matching ENTRY_BLOCK_PTR/EXIT_BLOCK_PTR
// in GCC. Real blocks are indexed starting at 0.
const (
	EntryIndex = -1
	ExitIndex  = -2
)

// Func is a procedure's control-flow graph: a dense array of
// BasicBlocks reachable (in the natural order) from Entry, plus the
// ENTRY/EXIT sentinels. It is the pre-built CFG with edge
// probabilities, frequencies, and execution counts that the reordering
// pass consumes.
type Func struct {
	Name string

	Entry *BasicBlock
	Exit  *BasicBlock

	// Blocks holds the real (non-sentinel) blocks in natural order.
	// Index i need not equal Blocks[i].Index after duplication; use
	// ByIndex for index-based lookup.
	Blocks []*BasicBlock

	byIndex map[int]*BasicBlock
	nextIdx int
}

// New creates an empty Func with just its ENTRY and EXIT sentinels
// wired together.
func New(name string) *Func {
	f := &Func{Name: name, byIndex: make(map[int]*BasicBlock)}
	f.Entry = &BasicBlock{Index: EntryIndex, f: f}
	f.Exit = &BasicBlock{Index: ExitIndex, f: f}
	return f
}

// NumBlocks returns the number of real (non-sentinel) blocks.
func (f *Func) NumBlocks() int { return len(f.Blocks) }

// LastBasicBlock returns one past the largest index ever assigned to a
// real block in f, i.e. the size BlockAux must be allocated to.
func (f *Func) LastBasicBlock() int { return f.nextIdx }

// ByIndex looks up a live block by its dense index. Returns nil if no
// block with that index currently exists (it may have been created and
// later is simply not tracked; callers should not rely on holes).
func (f *Func) ByIndex(i int) *BasicBlock {
	switch i {
	case EntryIndex:
		return f.Entry
	case ExitIndex:
		return f.Exit
	}
	return f.byIndex[i]
}

// AddBlock appends a freshly-created block to the natural order,
// linking NextBB/PrevBB, and assigns it the next dense index.
func (f *Func) AddBlock(b *BasicBlock) {
	b.f = f
	b.Index = f.nextIdx
	f.nextIdx++
	f.byIndex[b.Index] = b
	if n := len(f.Blocks); n > 0 {
		tail := f.Blocks[n-1]
		tail.NextBB = b
		b.PrevBB = tail
	}
	f.Blocks = append(f.Blocks, b)
}

// InsertBlockAfter splices b into the natural order immediately after
// after, matching force_nonfallthru's placement requirement.
func (f *Func) InsertBlockAfter(b, after *BasicBlock) {
	b.f = f
	b.Index = f.nextIdx
	f.nextIdx++
	f.byIndex[b.Index] = b

	b.PrevBB = after
	b.NextBB = after.NextBB
	if after.NextBB != nil {
		after.NextBB.PrevBB = b
	}
	after.NextBB = b

	idx := -1
	for i, bb := range f.Blocks {
		if bb == after {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.Blocks = append(f.Blocks, b)
		return
	}
	f.Blocks = append(f.Blocks, nil)
	copy(f.Blocks[idx+2:], f.Blocks[idx+1:])
	f.Blocks[idx+1] = b
}

// Fatalf reports a programmer error in the CFG or the pass operating on
// it. Every call is a fatal assertion, never a recoverable condition:
// anomalies here mean the CFG was already corrupt before the pass got
// to it.
func (f *Func) Fatalf(format string, args ...any) {
	panic(&InternalError{Func: f.Name, Msg: fmt.Sprintf(format, args...)})
}

// InternalError is the panic value raised by Fatalf. A caller that
// wants gcc's "abort with a contextual message" behavior at a process
// boundary (e.g. the CLI) should recover and report it, not resume.
type InternalError struct {
	Func string
	Msg  string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("bbreorder: internal error in %s: %s", e.Func, e.Msg)
}

// Postorder computes a DFS postorder traversal of the real blocks
// reachable from Entry. Unreachable blocks do not appear.
func (f *Func) Postorder() []*BasicBlock {
	seen := make(map[int]bool, len(f.Blocks))
	order := make([]*BasicBlock, 0, len(f.Blocks))

	type frame struct {
		b   *BasicBlock
		idx int
	}
	var stack []frame
	push := func(b *BasicBlock) {
		if seen[b.Index] {
			return
		}
		seen[b.Index] = true
		stack = append(stack, frame{b: b})
	}
	for _, e := range f.Entry.Succs {
		push(e.Dest)
	}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.idx < len(top.b.Succs) {
			nxt := top.b.Succs[top.idx].Dest
			top.idx++
			if !nxt.IsExit() {
				push(nxt)
			}
			continue
		}
		order = append(order, top.b)
		stack = stack[:len(stack)-1]
	}
	return order
}

// SCCs returns the strongly connected components of f's control-flow
// graph in topological order of the kernel DAG (a component comes
// before every component it has edges into), using the
// Kosaraju-Sharir algorithm: the first DFS pass, postorder, is needed
// anyway, making the second pass effectively free. Each SCC with more
// than one block identifies a loop.
func (f *Func) SCCs() [][]*BasicBlock {
	po := f.Postorder()
	reachable := make(map[int]bool, len(po))
	for _, b := range po {
		reachable[b.Index] = true
	}

	seen := make(map[int]bool, len(po))
	var result [][]*BasicBlock
	for i := len(po) - 1; i >= 0; i-- {
		leader := po[i]
		if seen[leader.Index] {
			continue
		}
		var scc []*BasicBlock
		queue := []*BasicBlock{leader}
		seen[leader.Index] = true
		for len(queue) > 0 {
			b := queue[0]
			queue = queue[1:]
			scc = append(scc, b)
			for _, e := range b.Preds {
				pred := e.Src
				if pred.IsEntry() {
					continue
				}
				if reachable[pred.Index] && !seen[pred.Index] {
					seen[pred.Index] = true
					queue = append(queue, pred)
				}
			}
		}
		result = append(result, scc)
	}
	return result
}

// MarkBackEdges sets DFSBack on every edge that closes a loop, using
// the strongly connected components SCCs computes: an edge whose
// endpoints share a nontrivial SCC (or that is a self-loop) and whose
// destination is no later than its source in the natural block order
// is the edge completing that cycle. Clears any stale DFSBack flags
// first. Corresponds to mark_dfs_back_edges.
func (f *Func) MarkBackEdges() {
	sccs := f.SCCs()
	sccOf := make(map[int]int, len(f.Blocks))
	for i, scc := range sccs {
		for _, b := range scc {
			sccOf[b.Index] = i
		}
	}

	for _, b := range f.Blocks {
		for _, e := range b.Succs {
			e.Flags &^= DFSBack
			if e.Src.IsEntry() || e.Dest.IsExit() {
				continue
			}
			si, sok := sccOf[e.Src.Index]
			di, dok := sccOf[e.Dest.Index]
			if !sok || !dok || si != di {
				continue
			}
			if len(sccs[si]) == 1 && e.Src != e.Dest {
				continue
			}
			if e.Dest.Index <= e.Src.Index {
				e.Flags |= DFSBack
			}
		}
	}
}
