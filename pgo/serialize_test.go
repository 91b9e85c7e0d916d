// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pgo_test

import (
	"bytes"
	"testing"

	"github.com/cellarway/bbreorder/pgo"
	"github.com/stretchr/testify/require"
)

func TestWriteToReadFromRoundTrip(t *testing.T) {
	p := &pgo.Profile{
		Counters: map[string]pgo.FunctionCounters{
			"main.hot":  {10: 500, 11: 300, 20: 1},
			"main.cold": {5: 0},
		},
	}

	var buf bytes.Buffer
	_, err := p.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "GO PREPROFILE V1\n")

	var got pgo.Profile
	_, err = got.ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, p.Counters, got.Counters)
	require.Equal(t, int64(801), got.TotalWeight)
}

func TestReadFromRejectsBadHeader(t *testing.T) {
	var p pgo.Profile
	_, err := p.ReadFrom(bytes.NewBufferString("not a profile\n"))
	require.Error(t, err)
}

func TestWeightForLinesSumsRange(t *testing.T) {
	p := &pgo.Profile{
		Counters: map[string]pgo.FunctionCounters{
			"main.f": {1: 10, 2: 20, 3: 30, 100: 999},
		},
	}
	require.Equal(t, int64(60), p.WeightForLines("main.f", 1, 3))
	require.Equal(t, int64(0), p.WeightForLines("main.missing", 1, 3))
}
