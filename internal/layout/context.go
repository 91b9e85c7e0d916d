// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import "github.com/cellarway/bbreorder/cfg"

// Options configures a single ReorderBasicBlocks invocation
// (PartitionHotColdBasicBlocks takes no Options).
type Options struct {
	// BranchThPercent and ExecThPercent are percentages of the maximum
	// entry frequency and count. newContext records the scaled values
	// in the pass context, but trace formation does not read them: its
	// per-round thresholds come from the fixed roundThresholds table.
	BranchThPercent int
	ExecThPercent   int

	// Partition, when true, makes TraceBuilder defer cold blocks to an
	// extra final round and makes TraceConnector connect cold traces
	// after the hot ones, with connection by duplication disabled. It
	// does not classify blocks or fix up crossing edges; that is done by
	// PartitionHotColdBasicBlocks, which runs before ReorderBasicBlocks.
	Partition bool

	// Dump receives a trace of the pass's decisions when non-nil.
	Dump DumpSink
}

// DefaultOptions returns 10% for both BranchThPercent and
// ExecThPercent, with partitioning off.
func DefaultOptions() Options {
	return Options{BranchThPercent: 10, ExecThPercent: 10}
}

// context carries everything a pass invocation needs instead of the
// file-scope statics bb-reorder.c keeps (branch_threshold,
// exec_threshold, uncond_jump_length, max_entry_frequency,
// max_entry_count, array_size, bbd). Building one fresh per call makes
// the package safe to invoke concurrently on independent functions.
type context struct {
	f       *cfg.Func
	target  cfg.Target
	emitter cfg.Emitter
	opts    Options

	aux *BlockAux

	branchThreshold int
	execThreshold   uint64

	maxEntryFrequency int
	maxEntryCount     uint64

	uncondJumpLength int
}

func newContext(f *cfg.Func, target cfg.Target, emitter cfg.Emitter, opts Options) *context {
	c := &context{
		f:       f,
		target:  target,
		emitter: emitter,
		opts:    opts,
		aux:     NewBlockAux(f.LastBasicBlock()),
	}
	c.computeMaxEntry()
	c.branchThreshold = c.maxEntryFrequency * opts.BranchThPercent / 100
	c.execThreshold = uint64(c.maxEntryCount) * uint64(opts.ExecThPercent) / 100
	c.uncondJumpLength = target.UncondJumpLength()
	return c
}

// computeMaxEntry mirrors the scan at the top of reorder_basic_blocks
// that finds the maximum frequency/count among the entry block's
// successors, used to scale the branch/exec thresholds.
func (c *context) computeMaxEntry() {
	for _, e := range c.f.Entry.Succs {
		if e.Dest.Frequency > c.maxEntryFrequency {
			c.maxEntryFrequency = e.Dest.Frequency
		}
		if e.Dest.Count > c.maxEntryCount {
			c.maxEntryCount = e.Dest.Count
		}
	}
}

func (c *context) logf(format string, args ...any) {
	if c.opts.Dump != nil {
		c.opts.Dump.Printf(format, args...)
	}
}
