// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCFGStraightLine(t *testing.T) {
	f, err := loadCFG("testdata/straight_line.json")
	require.NoError(t, err)
	require.Equal(t, "straight_line", f.Name)
	require.Equal(t, 3, f.NumBlocks())
	require.Len(t, f.Entry.Succs, 1)
	require.Len(t, f.Exit.Preds, 1)
}

func TestLoadCFGMissingFile(t *testing.T) {
	_, err := loadCFG("testdata/does_not_exist.json")
	require.Error(t, err)
}
