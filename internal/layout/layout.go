// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import "github.com/cellarway/bbreorder/cfg"

// ReorderBasicBlocks runs trace formation and trace connection over f,
// leaving BlockAux's next links defining a new linear order. It is a
// no-op when f has at most one real block or target reports
// CannotModifyJumps.
//
// Callers wanting hot/cold partitioning should run
// PartitionHotColdBasicBlocks first and then call this with
// opts.Partition set; the two are independent entry points sharing the
// same CFG substrate, and trace formation reads the Partition that the
// earlier classification gave each block.
func ReorderBasicBlocks(f *cfg.Func, target cfg.Target, emitter cfg.Emitter, opts Options) *Order {
	if f.NumBlocks() <= 1 || target.CannotModifyJumps() {
		return noopOrder(f)
	}

	c := newContext(f, target, emitter, opts)

	tb := NewTraceBuilder(c)
	traces := tb.Build()

	tcr := NewTraceConnector(c, traces)
	entry := tcr.Connect()
	if entry < 0 {
		return noopOrder(f)
	}

	return &Order{First: traces[entry].First, aux: c.aux}
}

// PartitionHotColdBasicBlocks classifies every block hot/cold and
// rewrites crossing edges so the layout can legally segregate cold
// code into its own section. No-op under the same conditions as
// ReorderBasicBlocks.
func PartitionHotColdBasicBlocks(f *cfg.Func, target cfg.Target, emitter cfg.Emitter) {
	if f.NumBlocks() <= 1 || target.CannotModifyJumps() {
		return
	}
	c := newContext(f, target, emitter, Options{Partition: true})
	NewPartitionFixup(c).Run()
}

// Order is the result of ReorderBasicBlocks: the head of the final
// chain plus the BlockAux table whose next links define it. Chain
// walks use Next, not the block's own fields, since the CFG's natural
// NextBB/PrevBB order is left untouched.
type Order struct {
	First *cfg.BasicBlock
	aux   *BlockAux
}

// Next returns the block laid out immediately after bb, or nil at the
// end of the chain. When the pass short-circuited as a no-op, this
// falls back to the CFG's natural order.
func (o *Order) Next(bb *cfg.BasicBlock) *cfg.BasicBlock {
	if o.aux == nil {
		return bb.NextBB
	}
	return o.aux.LayoutNext(bb)
}

// Blocks walks the chain from First and returns it as a slice, for
// callers (and tests) that want the whole order at once.
func (o *Order) Blocks() []*cfg.BasicBlock {
	var out []*cfg.BasicBlock
	for b := o.First; b != nil; b = o.Next(b) {
		out = append(out, b)
	}
	return out
}

// noopOrder returns the CFG's existing natural order unchanged, used
// by both no-op short-circuits.
func noopOrder(f *cfg.Func) *Order {
	if f.NumBlocks() == 0 {
		return &Order{}
	}
	return &Order{First: f.Blocks[0]}
}
