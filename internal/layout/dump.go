// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import (
	"fmt"
	"io"
	"log/slog"
)

// DumpSink receives the pass's -fdump-rtl-bbro-style trace.
// TraceBuilder emits one line per round with that round's thresholds
// and a "Getting bb N" line for each block it extracts from the heap.
// Trace membership, key changes, loop rotations, trace connections, the
// final chain and the crossing-edge fixups are not reported.
type DumpSink interface {
	Printf(format string, args ...any)
}

// WriterDump writes each line straight to an io.Writer, no timestamps
// or structure: the plain-text, one-line-per-event format of the pass's
// traditional dump.
type WriterDump struct {
	W io.Writer
}

func (d WriterDump) Printf(format string, args ...any) {
	fmt.Fprintf(d.W, format+"\n", args...)
}

// SlogDump adapts DumpSink to structured logging, for callers (like the
// CLI) that want the trace folded into their regular log stream rather
// than a separate dump file.
type SlogDump struct {
	Logger *slog.Logger
}

func (d SlogDump) Printf(format string, args ...any) {
	d.Logger.Debug(fmt.Sprintf(format, args...))
}
