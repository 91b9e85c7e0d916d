// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pgo ingests profile-guided-optimization data and projects it
// onto a procedure's basic blocks as frequency and count hints for the
// layout pass.
package pgo

import (
	"fmt"
	"os"

	"github.com/google/pprof/profile"
)

// FunctionCounters maps a source line within one function to an
// aggregated sample count. Line 0 is used for samples that could not
// be attributed to a specific line within the function.
type FunctionCounters map[int64]int64

// Profile is a pre-digested, per-function, per-line execution count
// table, the unit the bbreorder command's applyProfile projects onto a
// cfg.Func's blocks (via WeightForLines over each block's line range).
type Profile struct {
	// Counters maps a fully-qualified function name to its per-line
	// counters.
	Counters map[string]FunctionCounters

	// TotalWeight is the sum of every sample value across every
	// function.
	TotalWeight int64
}

// Load parses a pprof CPU profile at path and aggregates its samples
// by (function, line), the same projection loadCounters performs
// against a *profile.Profile's Sample slice: each sample's value is
// added to the line bucket of its leaf frame (the first Line of its
// first Location); frames further up the call stack are not counted.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pgo: opening profile: %w", err)
	}
	defer f.Close()

	p, err := profile.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("pgo: parsing profile: %w", err)
	}
	return FromPprof(p)
}

// FromPprof aggregates an already-parsed pprof profile, always summing
// each sample's first value (the one p.SampleType[0] describes),
// matching how loadCounters consults p.SampleType[0].
func FromPprof(p *profile.Profile) (*Profile, error) {
	if len(p.SampleType) == 0 {
		return nil, fmt.Errorf("pgo: profile has no sample types")
	}

	result := &Profile{Counters: make(map[string]FunctionCounters)}
	for _, sample := range p.Sample {
		if len(sample.Value) == 0 {
			continue
		}
		value := sample.Value[0]
		result.TotalWeight += value

		if len(sample.Location) == 0 {
			continue
		}
		// The leaf frame, i.e. Line[0] of the innermost Location,
		// attributes the sample to the function actually executing.
		loc := sample.Location[0]
		if len(loc.Line) == 0 {
			continue
		}
		line := loc.Line[0]
		if line.Function == nil {
			continue
		}
		name := line.Function.Name
		fc, ok := result.Counters[name]
		if !ok {
			fc = make(FunctionCounters)
			result.Counters[name] = fc
		}
		fc[line.Line] += value
	}
	return result, nil
}

// WeightForLines sums the counters for every line in [lo, hi] within
// fn, the projection used to assign a cfg.BasicBlock its Count: a
// block typically corresponds to a contiguous source-line range, and
// its execution count is the sum of the samples landing in that range.
func (p *Profile) WeightForLines(fn string, lo, hi int64) int64 {
	fc, ok := p.Counters[fn]
	if !ok {
		return 0
	}
	var sum int64
	for line, count := range fc {
		if line >= lo && line <= hi {
			sum += count
		}
	}
	return sum
}
