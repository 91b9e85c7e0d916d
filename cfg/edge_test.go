// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg_test

import (
	"testing"

	"github.com/cellarway/bbreorder/cfg"
	"github.com/stretchr/testify/require"
)

func TestEdgeFrequencyScalesByProbability(t *testing.T) {
	f := cfg.New("freq")
	b0 := f.CreateBasicBlock()
	b1 := f.CreateBasicBlock()
	b0.Frequency = 100
	e := f.MakeEdge(b0, b1, 5000, 50, cfg.CanFallthru)
	require.Equal(t, 50, e.Frequency())
}

func TestEdgeFrequencyZeroWhenSrcNil(t *testing.T) {
	e := &cfg.Edge{}
	require.Equal(t, 0, e.Frequency())
}

func TestEdgeFlagsHas(t *testing.T) {
	f := cfg.Fallthru | cfg.Complex
	require.True(t, f.Has(cfg.Fallthru))
	require.True(t, f.Has(cfg.Complex))
	require.False(t, f.Has(cfg.DFSBack))
}
