// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import "github.com/cellarway/bbreorder/cfg"

// Trace is a chain of blocks TraceBuilder decided should execute
// consecutively. Its chain is the sequence of BlockAux.next links from
// First to Last; TraceConnector only ever rewrites the link leaving
// Last (or, during rotation, a link strictly inside the chain).
type Trace struct {
	First, Last *cfg.BasicBlock
	Round       int
	Length      int
}

// roundThreshold is one row of the fixed per-round threshold table
// TraceBuilder walks through; BranchPerMille/ExecPerMille are parts
// per thousand of PROB_BASE / max_entry_frequency respectively.
type roundThreshold struct {
	BranchPerMille int
	ExecPerMille   int
}

// roundThresholds is the reference threshold table. The final row must
// be all-zero so every remaining block is consumed somewhere; when
// partitioning is enabled an extra all-zero round is appended,
// reserved exclusively for cold blocks.
var roundThresholds = []roundThreshold{
	{400, 500},
	{200, 200},
	{100, 50},
	{0, 0},
}

func roundTable(partition bool) []roundThreshold {
	if !partition {
		return roundThresholds
	}
	out := make([]roundThreshold, len(roundThresholds)+1)
	copy(out, roundThresholds)
	out[len(roundThresholds)] = roundThreshold{0, 0}
	return out
}
