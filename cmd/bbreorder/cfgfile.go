// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cellarway/bbreorder/cfg"
)

// cfgFile is the on-disk JSON shape for a demo procedure: a flat list
// of blocks and a flat list of edges referencing them by index.
// "entry" and "exit" in From/To select the function's ENTRY/EXIT
// sentinels without needing real indices for them.
type cfgFile struct {
	Name   string      `json:"name"`
	Blocks []blockSpec `json:"blocks"`
	Edges  []edgeSpec  `json:"edges"`
}

type blockSpec struct {
	Index     int    `json:"index"`
	Frequency int    `json:"frequency"`
	Count     uint64 `json:"count"`
	JumpKind  string `json:"jump_kind,omitempty"`
}

type edgeSpec struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Probability int    `json:"probability"`
	Count       uint64 `json:"count"`
	Fallthru    bool   `json:"fallthru"`
	Complex     bool   `json:"complex"`
}

// loadCFG reads a JSON procedure description from path and builds a
// *cfg.Func, wiring ENTRY/EXIT and every block/edge it describes.
func loadCFG(path string) (*cfg.Func, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cfg file: %w", err)
	}

	var doc cfgFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing cfg file: %w", err)
	}

	f := cfg.New(doc.Name)
	byIndex := make(map[int]*cfg.BasicBlock, len(doc.Blocks))
	for _, bs := range doc.Blocks {
		b := f.CreateBasicBlock()
		b.Frequency = bs.Frequency
		b.Count = bs.Count
		byIndex[bs.Index] = b
	}

	resolve := func(ref string) (*cfg.BasicBlock, error) {
		switch ref {
		case "entry":
			return f.Entry, nil
		case "exit":
			return f.Exit, nil
		default:
			var idx int
			if _, err := fmt.Sscanf(ref, "%d", &idx); err != nil {
				return nil, fmt.Errorf("bad block reference %q: %w", ref, err)
			}
			b, ok := byIndex[idx]
			if !ok {
				return nil, fmt.Errorf("no block with index %d", idx)
			}
			return b, nil
		}
	}

	for _, es := range doc.Edges {
		src, err := resolve(es.From)
		if err != nil {
			return nil, err
		}
		dst, err := resolve(es.To)
		if err != nil {
			return nil, err
		}

		flags := cfg.CanFallthru
		if es.Fallthru {
			flags |= cfg.Fallthru
		}
		if es.Complex {
			flags |= cfg.Complex
		}
		e := f.MakeEdge(src, dst, es.Probability, es.Count, flags)

		if es.Fallthru && src.Jump == nil {
			continue
		}
		if src.Jump == nil && len(src.Succs) > 1 {
			src.Jump = &cfg.Jump{Kind: cfg.JumpCond, Taken: e}
		}
	}

	f.MarkBackEdges()
	return f, nil
}
