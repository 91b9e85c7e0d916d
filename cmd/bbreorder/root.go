// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cellarway/bbreorder/cfg"
	"github.com/cellarway/bbreorder/internal/layout"
	"github.com/cellarway/bbreorder/pgo"
)

var v = viper.New()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bbreorder <cfg.json>",
		Short: "Reorder a procedure's basic blocks for instruction-cache locality",
		Args:  cobra.ExactArgs(1),
		RunE:  runReorder,
	}

	flags := cmd.Flags()
	flags.Bool("partition", false, "segregate cold blocks into a separate section")
	flags.Int("branch-threshold", 10, "sets layout.Options.BranchThPercent; trace formation uses its fixed per-round thresholds and does not read it")
	flags.Int("exec-threshold", 10, "sets layout.Options.ExecThPercent; trace formation uses its fixed per-round thresholds and does not read it")
	flags.String("profile", "", "path to a pprof CPU profile, or a pre-digested profile (see --profile-format)")
	flags.String("profile-format", "pprof", "profile format: pprof or preprofile")
	flags.Bool("verbose", false, "emit the pass's round-by-round trace via structured logging")

	for _, name := range []string{"partition", "branch-threshold", "exec-threshold", "profile", "profile-format", "verbose"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	v.SetEnvPrefix("bbreorder")
	v.AutomaticEnv()

	return cmd
}

func runReorder(cmd *cobra.Command, args []string) error {
	logLevel := slog.LevelInfo
	if v.GetBool("verbose") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	f, err := loadCFG(args[0])
	if err != nil {
		return fmt.Errorf("loading cfg: %w", err)
	}

	if profilePath := v.GetString("profile"); profilePath != "" {
		if err := applyProfile(f, profilePath, v.GetString("profile-format")); err != nil {
			return fmt.Errorf("applying profile: %w", err)
		}
	}

	target := cfg.DefaultTarget{}
	emitter := cfg.BasicEmitter{}

	opts := layout.Options{
		BranchThPercent: v.GetInt("branch-threshold"),
		ExecThPercent:   v.GetInt("exec-threshold"),
		Partition:       v.GetBool("partition"),
		Dump:            layout.SlogDump{Logger: logger},
	}

	if opts.Partition {
		layout.PartitionHotColdBasicBlocks(f, target, emitter)
	}
	order := layout.ReorderBasicBlocks(f, target, emitter, opts)

	for _, bb := range order.Blocks() {
		fmt.Printf("%d\t%s\tfreq=%d count=%d\n", bb.Index, bb.Partition, bb.Frequency, bb.Count)
	}
	return nil
}

// applyProfile loads a profile in the requested format and sets each
// block's Count from it. For both formats it looks up the counters of
// the function named like the CFG and takes the one whose line number
// equals the block's index, leaving Count unchanged when that is zero:
// a convenience for the demo JSON CFG format, which has no real source
// lines to key on.
func applyProfile(f *cfg.Func, path, format string) error {
	var p *pgo.Profile
	var err error
	switch format {
	case "pprof":
		p, err = pgo.Load(path)
	case "preprofile":
		p = &pgo.Profile{}
		file, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer file.Close()
		_, err = p.ReadFrom(file)
	default:
		return fmt.Errorf("unknown profile format %q", format)
	}
	if err != nil {
		return err
	}

	for _, bb := range f.Blocks {
		w := p.WeightForLines(f.Name, int64(bb.Index), int64(bb.Index))
		if w > 0 {
			bb.Count = uint64(w)
		}
	}
	return nil
}
