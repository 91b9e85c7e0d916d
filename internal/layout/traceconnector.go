// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import "github.com/cellarway/bbreorder/cfg"

// duplicationThresholdPerMille gates connection-by-duplication: the
// two-edge path's second edge must clear this fraction of
// max_entry_frequency/max_entry_count, matching DUPLICATION_THRESHOLD.
const duplicationThresholdPerMille = 100

// TraceConnector stitches the traces TraceBuilder produced into a
// single chain, choosing inter-trace edges and, where none exists,
// duplicating a single intermediary block to preserve fall-through.
type TraceConnector struct {
	c      *context
	traces []*Trace

	// byFirst and byLast map the index of a trace's first/last block to
	// that trace's position in traces (0-based), letting connection
	// logic find "the trace starting/ending at this block" without a
	// linear scan.
	byFirst map[int]int // First.Index -> traces[] position
	byLast  map[int]int // Last.Index -> traces[] position
}

// NewTraceConnector builds a connector over the traces formed by tb.
func NewTraceConnector(c *context, traces []*Trace) *TraceConnector {
	tcr := &TraceConnector{
		c:       c,
		traces:  traces,
		byFirst: make(map[int]int, len(traces)),
		byLast:  make(map[int]int, len(traces)),
	}
	for i, t := range traces {
		tcr.byFirst[t.First.Index] = i
		tcr.byLast[t.Last.Index] = i
	}
	return tcr
}

// Connect runs the full two-phase (hot then cold) stitching and
// returns the index of the entry trace, whose First block is the head
// of the final chain.
func (tcr *TraceConnector) Connect() int {
	n := len(tcr.traces)
	if n == 0 {
		return -1
	}
	connected := make([]bool, n)

	if tcr.c.opts.Partition {
		for i, t := range tcr.traces {
			if t.First.Partition == cfg.Cold {
				connected[i] = true
			}
		}
		last := tcr.run(connected, -1)
		for i, t := range tcr.traces {
			if t.First.Partition == cfg.Cold {
				connected[i] = false
			}
		}
		tcr.run(connected, last)
	} else {
		tcr.run(connected, -1)
	}
	return 0
}

func (tcr *TraceConnector) run(connected []bool, lastTrace int) int {
	for t := range tcr.traces {
		if connected[t] {
			continue
		}
		t2 := tcr.predecessorWalk(t, connected)

		if lastTrace >= 0 {
			tcr.c.aux.SetLayoutNext(tcr.traces[lastTrace].Last, tcr.traces[t2].First)
		}

		cur := t
		for {
			next, ok := tcr.successorWalk(cur, connected)
			if !ok {
				next, ok = tcr.duplicationWalk(cur, connected)
			}
			if !ok {
				break
			}
			connected[next] = true
			cur = next
		}
		connected[t] = true
		lastTrace = cur
	}
	return lastTrace
}

// predecessorWalk builds the prefix chain ending at trace t by
// repeatedly finding an unconnected trace whose Last block has a
// fall-through, non-complex edge into the current prefix head.
func (tcr *TraceConnector) predecessorWalk(t int, connected []bool) int {
	cur := t
	for {
		head := tcr.traces[cur].First
		var best *cfg.Edge
		var bestSrcTrace int
		for _, e := range head.Preds {
			if e.Src.IsEntry() || e.Flags.Has(cfg.Complex) || !e.Flags.Has(cfg.Fallthru) {
				continue
			}
			srcTrace, ok := tcr.byLast[e.Src.Index]
			if !ok || connected[srcTrace] || srcTrace == cur {
				continue
			}
			if best == nil || tcr.betterConnector(e, best, srcTrace, bestSrcTrace) {
				best = e
				bestSrcTrace = srcTrace
			}
		}
		if best == nil {
			return cur
		}
		tcr.c.aux.SetLayoutNext(best.Src, best.Dest)
		connected[bestSrcTrace] = true
		cur = bestSrcTrace
	}
}

// successorWalk extends the chain forward from trace t's Last block
// along a fall-through, non-complex edge to an unconnected trace's
// First block.
func (tcr *TraceConnector) successorWalk(t int, connected []bool) (int, bool) {
	tail := tcr.traces[t].Last
	var best *cfg.Edge
	var bestTrace int
	for _, e := range tail.Succs {
		if e.Flags.Has(cfg.Complex) || !e.Flags.Has(cfg.Fallthru) {
			continue
		}
		dstTrace, ok := tcr.byFirst[e.Dest.Index]
		if !ok || connected[dstTrace] {
			continue
		}
		if best == nil || tcr.betterConnector(e, best, dstTrace, bestTrace) {
			best = e
			bestTrace = dstTrace
		}
	}
	if best == nil {
		return 0, false
	}
	tcr.c.aux.SetLayoutNext(tail, best.Dest)
	return bestTrace, true
}

// betterConnector tie-breaks two candidate stitching edges: higher
// probability wins, then the longer trace.
func (tcr *TraceConnector) betterConnector(e, cur *cfg.Edge, eTrace, curTrace int) bool {
	if e.Probability != cur.Probability {
		return e.Probability > cur.Probability
	}
	return tcr.traces[eTrace].Length > tcr.traces[curTrace].Length
}

// duplicationWalk looks for a two-edge path t.Last -> x -> T2.First
// where duplicating x lets T2 attach without a real fall-through edge
// from t. Disabled entirely when partitioning, per spec.
func (tcr *TraceConnector) duplicationWalk(t int, connected []bool) (int, bool) {
	if tcr.c.opts.Partition {
		return 0, false
	}
	tail := tcr.traces[t].Last

	freqTh := tcr.c.maxEntryFrequency * duplicationThresholdPerMille / 1000
	countTh := tcr.c.maxEntryCount * duplicationThresholdPerMille / 1000

	for _, xe := range tail.Succs {
		if xe.Flags.Has(cfg.Complex) || !xe.Flags.Has(cfg.CanFallthru) {
			continue
		}
		x := xe.Dest
		if x.IsExit() {
			continue
		}

		if xTrace, ok := tcr.byFirst[x.Index]; ok && tcr.traces[xTrace].Length == 1 && !connected[xTrace] {
			tcr.c.aux.SetLayoutNext(tail, x)
			return xTrace, true
		}

		for _, ye := range x.Succs {
			if ye.Flags.Has(cfg.Complex) {
				continue
			}
			dstTrace, ok := tcr.byFirst[ye.Dest.Index]
			if !ok || connected[dstTrace] || ye.Dest != tcr.traces[dstTrace].First {
				continue
			}
			if ye.Frequency() < freqTh || ye.Count < countTh {
				continue
			}
			if !tb2CopyBBP(tcr.c, x) {
				continue
			}
			dup := tcr.c.f.DuplicateBlock(x, xe)
			tcr.c.aux.MarkVisited(dup, 0)
			tcr.c.aux.SetLayoutNext(tail, dup)
			tcr.c.aux.SetLayoutNext(dup, ye.Dest)
			return dstTrace, true
		}
	}
	return 0, false
}

// tb2CopyBBP exposes TraceBuilder's copy_bb_p check to TraceConnector
// without either owning the other; both apply the identical rule.
func tb2CopyBBP(c *context, bb *cfg.BasicBlock) bool {
	tb := &TraceBuilder{c: c}
	return tb.copyBBP(bb, true)
}
