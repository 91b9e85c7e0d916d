// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bbreorder loads a procedure's control-flow graph from JSON,
// optionally applies a profile, runs the basic-block reordering and
// hot/cold partitioning passes, and prints the resulting layout.
package main

import (
	"fmt"
	"os"

	"github.com/cellarway/bbreorder/cfg"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if ierr, ok := r.(*cfg.InternalError); ok {
				fmt.Fprintln(os.Stderr, "bbreorder:", ierr.Error())
				os.Exit(1)
			}
			panic(r)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bbreorder:", err)
		os.Exit(1)
	}
}
