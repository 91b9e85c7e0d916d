// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg_test

import (
	"testing"

	"github.com/cellarway/bbreorder/cfg"
	"github.com/stretchr/testify/require"
)

func TestDefaultTargetJumpLengthFallsBackToOne(t *testing.T) {
	var target cfg.DefaultTarget
	require.Equal(t, 1, target.UncondJumpLength())

	target.JumpLength = 4
	require.Equal(t, 4, target.UncondJumpLength())
}

func TestDefaultTargetFieldsAreReportedVerbatim(t *testing.T) {
	target := cfg.DefaultTarget{CannotModify: true, LongCond: true, LongUncond: true}
	require.True(t, target.CannotModifyJumps())
	require.True(t, target.HasLongCondBranch())
	require.True(t, target.HasLongUncondBranch())
}
