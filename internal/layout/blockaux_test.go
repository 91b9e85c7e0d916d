// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import (
	"testing"

	"github.com/cellarway/bbreorder/cfg"
	"github.com/stretchr/testify/require"
)

func TestBlockAuxSentinelDefaults(t *testing.T) {
	f := cfg.New("aux")
	b := f.CreateBasicBlock()
	a := NewBlockAux(f.LastBasicBlock())

	require.Equal(t, 0, a.LayoutVisited(b))
	require.Equal(t, -1, a.startOfTrace(b))
	require.Equal(t, -1, a.endOfTrace(b))
	require.Nil(t, a.LayoutNext(b))
}

func TestBlockAuxGrowsForDuplicatedBlocks(t *testing.T) {
	f := cfg.New("aux_grow")
	b := f.CreateBasicBlock()
	a := NewBlockAux(1)

	// NewBlockAux(1) allocates ((1/4)+1)*5 = 5 entries; index 8 lies
	// beyond them, so looking it up must grow the table.
	var c *cfg.BasicBlock
	for i := 0; i < 8; i++ {
		c = f.CreateBasicBlock()
	}
	require.Equal(t, -1, a.startOfTrace(c))
	a.setStartOfTrace(c, 3)
	require.Equal(t, 3, a.startOfTrace(c))
	_ = b
}

func TestMarkVisitedEvictsFromHeap(t *testing.T) {
	f := cfg.New("aux_evict")
	b := f.CreateBasicBlock()
	a := NewBlockAux(f.LastBasicBlock())

	h := NewPriorityHeap()
	n := h.Insert(b, 0)
	a.setHeap(b, h, n)

	a.MarkVisited(b, 1)
	require.Equal(t, 1, a.LayoutVisited(b))
	require.True(t, h.Empty())
	gotHeap, gotNode := a.heapOf(b)
	require.Nil(t, gotHeap)
	require.Nil(t, gotNode)
}
