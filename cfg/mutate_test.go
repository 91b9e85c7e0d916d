// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg_test

import (
	"testing"

	"github.com/cellarway/bbreorder/cfg"
	"github.com/stretchr/testify/require"
)

func TestDuplicateBlockCopiesShapeAndRedirects(t *testing.T) {
	f := cfg.New("dup")
	a := f.CreateBasicBlock()
	b := f.CreateBasicBlock()
	c := f.CreateBasicBlock()
	ab := f.MakeEdge(a, b, 10000, 50, cfg.CanFallthru|cfg.Fallthru)
	f.MakeEdge(b, c, 10000, 50, cfg.CanFallthru|cfg.Fallthru)
	b.Frequency = 50
	b.Jump = &cfg.Jump{Kind: cfg.JumpUncond, Taken: ab}

	dup := f.DuplicateBlock(b, ab)
	require.NotEqual(t, b, dup)
	require.Equal(t, b.Frequency, dup.Frequency)
	require.Len(t, dup.Succs, 1)
	require.Equal(t, c, dup.Succs[0].Dest)
	require.Equal(t, dup, ab.Dest)
	require.NotContains(t, b.Preds, ab)
}

func TestForceNonFallthruInsertsBlock(t *testing.T) {
	f := cfg.New("force")
	a := f.CreateBasicBlock()
	b := f.CreateBasicBlock()
	e := f.MakeEdge(a, b, 10000, 10, cfg.CanFallthru|cfg.Fallthru)

	nb := f.ForceNonFallthru(e)
	require.NotNil(t, nb)
	require.Equal(t, a, nb.PrevBB)
	require.Equal(t, b, nb.NextBB)
	require.True(t, e.Flags.Has(cfg.Fallthru))
	require.True(t, e.Flags.Has(cfg.CanFallthru))
	require.Equal(t, nb, e.Dest)
	require.NotNil(t, nb.Jump)
	require.Equal(t, cfg.JumpUncond, nb.Jump.Kind)
	require.False(t, nb.Jump.Taken.Flags.Has(cfg.Fallthru))
}

func TestForceNonFallthruNoopOnNonFallthru(t *testing.T) {
	f := cfg.New("force_noop")
	a := f.CreateBasicBlock()
	b := f.CreateBasicBlock()
	e := f.MakeEdge(a, b, 10000, 10, cfg.CanFallthru)

	require.Nil(t, f.ForceNonFallthru(e))
}

func TestBlockLabelLazyAndStable(t *testing.T) {
	f := cfg.New("label")
	b := f.CreateBasicBlock()
	l1 := f.BlockLabel(b)
	l2 := f.BlockLabel(b)
	require.Equal(t, l1, l2)
	require.NotEmpty(t, l1)
}
