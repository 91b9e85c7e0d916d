// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import "github.com/cellarway/bbreorder/cfg"

// traceState names the phases a single trace passes through while
// TraceBuilder extends it. The nested continue/break control flow of
// bb-reorder.c's trace_extend loop collapses to transitions between
// these five states.
type traceState int

const (
	seeking       traceState = iota // choosing whether to extend further
	extending                       // a successor was chosen; append and loop
	closeNormal                     // no eligible successor remains
	closeRotate                     // back edge found, ≥4 iterations: rotate
	closeDuplicate                  // back edge found, few iterations: duplicate
)

// bbFreqMax is a sentinel key returned by bbToKey for cold or
// never-executed blocks, large enough to sort after every normal
// (negative) key in the min-heap. This mirrors BB_FREQ_MAX as used by
// bb_to_key; see the design-notes entry on why cold blocks use a
// positive key while hot blocks use negative ones; that asymmetry is
// intentional, not a bug, because it is what pushes cold blocks to the
// back of every round's extraction order without a separate branch.
const bbFreqMax = 1 << 30

// TraceBuilder runs the multi-round greedy trace-formation phase.
type TraceBuilder struct {
	c      *context
	traces []*Trace
}

// NewTraceBuilder creates a builder scoped to c. c.aux must already be
// sized for c.f.
func NewTraceBuilder(c *context) *TraceBuilder {
	return &TraceBuilder{c: c}
}

// Build runs every round in turn and returns the traces formed, in the
// order their first block was extracted.
func (tb *TraceBuilder) Build() []*Trace {
	table := roundTable(tb.c.opts.Partition)
	nRounds := len(table)

	heap := NewPriorityHeap()
	for _, e := range tb.c.f.Entry.Succs {
		tb.insertOrReplace(heap, e.Dest, tb.bbToKey(e.Dest))
	}

	for round := 0; round < nRounds; round++ {
		th := table[round]
		branchTh := cfg.ProbBase * th.BranchPerMille / 1000
		execTh := tb.c.maxEntryFrequency * th.ExecPerMille / 1000
		countTh := tb.c.maxEntryCount * uint64(th.ExecPerMille) / 1000

		next := NewPriorityHeap()
		tb.c.logf("Round %d: branch_th=%d exec_th=%d count_th=%d", round, branchTh, execTh, countTh)

		for !heap.Empty() {
			bb := heap.ExtractMin()
			if tb.c.aux.LayoutVisited(bb) != 0 {
				continue
			}
			tb.c.logf("Getting bb %d", bb.Index)

			if tb.pushToNextRoundP(bb, round, nRounds, execTh, countTh) {
				tb.insertOrReplace(next, bb, tb.bbToKey(bb))
				continue
			}
			tb.startTrace(bb, round, branchTh, execTh, countTh, next)
		}
		heap = next
	}
	return tb.traces
}

// insertOrReplace inserts bb into h with the given key, or re-keys its
// existing node if it is already present in some heap: the "if
// already in a heap, replace_key" rule for non-selected successors.
func (tb *TraceBuilder) insertOrReplace(h *PriorityHeap, bb *cfg.BasicBlock, key int64) {
	curHeap, node := tb.c.aux.heapOf(bb)
	if curHeap == h {
		h.ReplaceKey(node, key)
		return
	}
	if curHeap != nil {
		curHeap.Delete(node)
	}
	n := h.Insert(bb, key)
	tb.c.aux.setHeap(bb, h, n)
}

// bbToKey computes the priority key used to order extraction within a
// round. Smaller (more negative) sorts first.
func (tb *TraceBuilder) bbToKey(bb *cfg.BasicBlock) int64 {
	if bb.Partition == cfg.Cold || cfg.ProbablyNeverExecutedBB(bb) {
		return bbFreqMax
	}

	var priority int
	for _, e := range bb.Preds {
		if e.Src.IsEntry() {
			continue
		}
		isEndOfTrace := tb.c.aux.endOfTrace(e.Src) >= 0
		if !isEndOfTrace && !e.Flags.Has(cfg.DFSBack) {
			continue
		}
		if f := e.Frequency(); f > priority {
			priority = f
		}
	}
	if priority > 0 {
		return -(int64(100*bbFreqMax) + int64(100*priority) + int64(bb.Frequency))
	}
	return -int64(bb.Frequency)
}

// pushToNextRoundP reports whether bb should be deferred to a later
// round instead of seeding a trace now.
func (tb *TraceBuilder) pushToNextRoundP(bb *cfg.BasicBlock, round, nRounds int, execTh int, countTh uint64) bool {
	if round+1 >= nRounds {
		return false
	}
	coldDeferred := tb.c.opts.Partition && bb.Partition == cfg.Cold
	return coldDeferred ||
		bb.Frequency < execTh ||
		bb.Count < countTh ||
		cfg.ProbablyNeverExecutedBB(bb)
}

// startTrace forms a new trace rooted at bb and extends it greedily
// until a close condition is reached.
func (tb *TraceBuilder) startTrace(bb *cfg.BasicBlock, round, branchTh, execTh int, countTh uint64, next *PriorityHeap) {
	trace := &Trace{First: bb, Round: round}
	traceOrd := len(tb.traces) + 1
	tb.traces = append(tb.traces, trace)

	tail := bb
	tb.c.aux.MarkVisited(tail, traceOrd)
	trace.Length = 1
	tb.c.aux.setStartOfTrace(bb, traceOrd)

	state := seeking
	var loopDest *cfg.BasicBlock
	for state == seeking {
		best := tb.chooseSuccessor(tail, round, branchTh, execTh, countTh, traceOrd, next)
		if best == nil {
			state = closeNormal
			break
		}

		dest := best.Dest
		if v := tb.c.aux.LayoutVisited(dest); v == traceOrd {
			// dest already belongs to this trace: a loop back edge.
			if dest == tail {
				state = closeNormal // one-block self-loop
				break
			}
			if best.Frequency()*10 > dest.Frequency*8 && dest != tb.firstRealBlock() {
				state = closeRotate
			} else if tb.copyBBP(dest, true) {
				loopDest = dest
				state = closeDuplicate
			} else {
				state = closeNormal
			}
			break
		}

		if tb.multiPredCheapToDuplicate(dest) {
			// Leave dest for TraceConnector; terminate here.
			state = closeNormal
			break
		}

		tb.c.aux.MarkVisited(dest, traceOrd)
		tb.c.aux.SetLayoutNext(tail, dest)
		tail = dest
		trace.Length++
		// state stays seeking; keep extending
	}

	switch state {
	case closeRotate:
		tail = tb.rotateLoop(trace, tail, traceOrd)
	case closeDuplicate:
		tail = tb.duplicateOnto(trace, tail, loopDest, traceOrd)
	}

	tb.c.aux.SetLayoutNext(tail, nil)
	trace.Last = tail
	tb.c.aux.setEndOfTrace(tail, traceOrd)

	// Re-key live successors of the new end-of-trace block: bbToKey's
	// end-of-trace predicate just changed for them.
	for _, e := range tail.Succs {
		if e.Dest.IsExit() || tb.c.aux.LayoutVisited(e.Dest) != 0 {
			continue
		}
		if h, node := tb.c.aux.heapOf(e.Dest); h != nil {
			h.ReplaceKey(node, tb.bbToKey(e.Dest))
		}
	}
}

func (tb *TraceBuilder) firstRealBlock() *cfg.BasicBlock {
	if len(tb.c.f.Blocks) == 0 {
		return nil
	}
	return tb.c.f.Blocks[0]
}

// chooseSuccessor applies the eligibility filter, the diamond
// heuristic, and better_edge_p to pick the edge the trace should
// extend along from tail, or nil if none qualifies.
func (tb *TraceBuilder) chooseSuccessor(tail *cfg.BasicBlock, round, branchTh, execTh int, countTh uint64, traceOrd int, next *PriorityHeap) *cfg.Edge {
	lastRound := round == len(roundTable(tb.c.opts.Partition))-1

	var best *cfg.Edge
	var runnerUp []*cfg.Edge
	for _, e := range tail.Succs {
		if !tb.eligible(e, lastRound, branchTh, execTh, countTh, traceOrd, next) {
			continue
		}
		if best == nil || tb.betterEdgeP(e, best) {
			if best != nil {
				runnerUp = append(runnerUp, best)
			}
			best = e
		} else {
			runnerUp = append(runnerUp, e)
		}
	}
	// Every eligible edge that loses to best is still a live candidate
	// for some other trace; defer it the same way an ineligible edge
	// would be, instead of dropping it on the floor.
	for _, e := range runnerUp {
		tb.deferOrSkip(e.Dest, traceOrd, next)
	}
	if best == nil {
		return nil
	}

	if diamond := tb.diamondCandidate(tail, best, lastRound, branchTh, execTh, countTh, traceOrd, next); diamond != nil {
		return diamond
	}
	return best
}

func (tb *TraceBuilder) eligible(e *cfg.Edge, lastRound bool, branchTh, execTh int, countTh uint64, traceOrd int, next *PriorityHeap) bool {
	if e.Flags.Has(cfg.Fake) || e.Dest.IsExit() {
		tb.deferOrSkip(e.Dest, traceOrd, next)
		return false
	}
	if v := tb.c.aux.LayoutVisited(e.Dest); v != 0 && v != traceOrd {
		return false
	}
	if e.Dest.Partition == cfg.Cold && !lastRound {
		tb.deferOrSkip(e.Dest, traceOrd, next)
		return false
	}
	if !e.Flags.Has(cfg.CanFallthru) || e.Flags.Has(cfg.Complex) {
		tb.deferOrSkip(e.Dest, traceOrd, next)
		return false
	}
	if e.Probability < branchTh || e.Dest.Frequency < execTh || e.Dest.Count < countTh {
		tb.deferOrSkip(e.Dest, traceOrd, next)
		return false
	}
	return true
}

// deferOrSkip inserts a rejected successor into the current or
// next-round heap, per push_to_next_round_p, so it is not lost.
func (tb *TraceBuilder) deferOrSkip(dest *cfg.BasicBlock, traceOrd int, next *PriorityHeap) {
	if dest.IsExit() || tb.c.aux.LayoutVisited(dest) == traceOrd {
		return
	}
	if tb.c.aux.LayoutVisited(dest) != 0 {
		return
	}
	tb.insertOrReplace(next, dest, tb.bbToKey(dest))
}

// betterEdgeP reports whether e beats cur under the 10% probability
// slack band, frequency tie-break, CFG-order tie-break, and
// partitioning crossing tie-break.
func (tb *TraceBuilder) betterEdgeP(e, cur *cfg.Edge) bool {
	slack := cur.Probability / 10
	if e.Probability > cur.Probability+slack {
		return true
	}
	if e.Probability < cur.Probability-slack {
		return false
	}
	if e.Dest.Frequency != cur.Dest.Frequency {
		return e.Dest.Frequency < cur.Dest.Frequency
	}
	eNatural := e.Dest.PrevBB == e.Src
	curNatural := cur.Dest.PrevBB == cur.Src
	if eNatural != curNatural {
		return eNatural
	}
	if tb.c.opts.Partition {
		eCross := e.Dest.Partition != e.Src.Partition
		curCross := cur.Dest.Partition != cur.Src.Partition
		if eCross != curCross {
			return !eCross
		}
	}
	return false
}

// diamondCandidate implements the `if (A) B; C` linearisation
// heuristic: prefer an edge e over best when following e leads to
// best's destination one hop later through a single fall-through.
func (tb *TraceBuilder) diamondCandidate(tail *cfg.BasicBlock, best *cfg.Edge, lastRound bool, branchTh, execTh int, countTh uint64, traceOrd int, next *PriorityHeap) *cfg.Edge {
	for _, e := range tail.Succs {
		if e == best || !e.Flags.Has(cfg.Fallthru) || e.Flags.Has(cfg.Complex) {
			continue
		}
		if e.Dest.Partition == cfg.Cold && !lastRound {
			continue
		}
		if e.Dest.IsExit() || tb.c.aux.LayoutVisited(e.Dest) != 0 || len(e.Dest.Preds) != 1 {
			continue
		}
		if len(e.Dest.Succs) != 1 {
			continue
		}
		onward := e.Dest.Succs[0]
		if onward.Flags.Has(cfg.Complex) || !onward.Flags.Has(cfg.Fallthru) || onward.Dest != best.Dest {
			continue
		}
		if 2*e.Dest.Frequency >= best.Frequency() {
			return e
		}
	}
	return nil
}

// multiPredCheapToDuplicate reports whether the greedy choice should
// be discarded so TraceConnector can duplicate dest instead: dest has
// more than one predecessor and is cheap to copy. This is the discard
// check, not a growth-budgeted duplication, so it gets the tight ×1
// size budget (code_may_grow = 0).
func (tb *TraceBuilder) multiPredCheapToDuplicate(dest *cfg.BasicBlock) bool {
	return len(dest.Preds) > 1 && tb.copyBBP(dest, false)
}

// copyBBP is copy_bb_p: whether bb may be duplicated given its
// frequency, predecessor count, backend permission, successor count,
// and encoded instruction length against the unconditional-jump
// length budget. codeMayGrow gates whether a hot block gets the ×8
// budget at all; callers pass false where growth should not be
// entertained regardless of heat.
func (tb *TraceBuilder) copyBBP(bb *cfg.BasicBlock, codeMayGrow bool) bool {
	if bb.Frequency <= 0 || len(bb.Preds) < 2 {
		return false
	}
	if !tb.c.f.CanDuplicateBlock(bb) {
		return false
	}
	if len(bb.Succs) > 8 {
		return false
	}
	budget := tb.c.uncondJumpLength
	if codeMayGrow && cfg.MaybeHotBB(bb) {
		budget *= 8
	}
	return tb.c.emitter.AttrLength(bb) <= budget
}

// rotateLoop walks the chain from the back-edge destination to the
// current tail, finds the best out-of-loop fall-through exit, and
// splices the chain so that block becomes the new tail.
func (tb *TraceBuilder) rotateLoop(trace *Trace, tail *cfg.BasicBlock, traceOrd int) *cfg.BasicBlock {
	best := tail.Succs[0]
	for _, e := range tail.Succs {
		if tb.betterEdgeP(e, best) {
			best = e
		}
	}
	loopHead := best.Dest

	var chain []*cfg.BasicBlock
	for b := loopHead; ; b = tb.c.aux.LayoutNext(b) {
		chain = append(chain, b)
		if b == tail {
			break
		}
	}

	bestIdx := -1
	bestFreq := -1
	for i, b := range chain {
		for _, e := range b.Succs {
			if e.Dest.IsExit() {
				continue
			}
			if tb.c.aux.LayoutVisited(e.Dest) == traceOrd {
				continue // in-loop edge
			}
			if tb.c.aux.LayoutVisited(e.Dest) != 0 && tb.c.aux.startOfTrace(e.Dest) < 0 {
				continue
			}
			if f := e.Frequency(); f > bestFreq {
				bestFreq = f
				bestIdx = i
			}
		}
	}
	if bestIdx < 0 {
		// No profitable exit found; terminate at the original tail.
		return tail
	}

	n := len(chain)
	newHead := chain[(bestIdx+1)%n]
	newTail := chain[bestIdx]

	if chain[0] == trace.First {
		trace.First = newHead
	} else if pred := tb.tracePredecessor(trace, chain[0]); pred != nil {
		tb.c.aux.SetLayoutNext(pred, newHead)
	}
	for k := 0; k < n-1; k++ {
		cur := chain[(bestIdx+1+k)%n]
		nxt := chain[(bestIdx+2+k)%n]
		tb.c.aux.SetLayoutNext(cur, nxt)
	}

	if len(newTail.Succs) == 1 {
		cand := newTail.Succs[0].Dest
		if cand.Jump != nil && cand.Jump.Kind == cfg.JumpCond && tb.copyBBP(cand, true) {
			newTail = tb.duplicateOnto(trace, newTail, cand, traceOrd)
		}
	}
	return newTail
}

// tracePredecessor walks from trace.First and returns the block whose
// next link currently points at target, or nil if target is the
// trace's own head.
func (tb *TraceBuilder) tracePredecessor(trace *Trace, target *cfg.BasicBlock) *cfg.BasicBlock {
	for b := trace.First; b != nil; b = tb.c.aux.LayoutNext(b) {
		if tb.c.aux.LayoutNext(b) == target {
			return b
		}
	}
	return nil
}

// duplicateOnto copies dest via the external duplicate_block contract
// and splices the copy onto the trace after tail.
func (tb *TraceBuilder) duplicateOnto(trace *Trace, tail, dest *cfg.BasicBlock, traceOrd int) *cfg.BasicBlock {
	var e *cfg.Edge
	for _, se := range tail.Succs {
		if se.Dest == dest {
			e = se
			break
		}
	}
	if e == nil {
		tb.c.f.Fatalf("duplicateOnto: %d has no edge to %d", tail.Index, dest.Index)
	}
	dup := tb.c.f.DuplicateBlock(dest, e)
	tb.c.aux.MarkVisited(dup, traceOrd)
	tb.c.aux.SetLayoutNext(tail, dup)
	trace.Length++
	return dup
}
