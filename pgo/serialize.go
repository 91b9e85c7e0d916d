// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pgo

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Serialization of a Profile lets a build pipeline pre-digest a pprof
// profile once and hand every compile invocation the already-projected
// counters, instead of re-parsing pprof's binary format per process.
//
// The format:
//
//	GO PREPROFILE V1
//	func: caller_name
//	line counter
//	...
//	func: caller_name
//	line counter
//
// Functions are sorted by name; lines within a function by line number.

const serializationHeader = "GO PREPROFILE V1\n"

// WriteTo writes a serialized representation of p to w.
//
// ReadFrom parses the format back into a Profile.
func (p *Profile) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64

	n, err := bw.WriteString(serializationHeader)
	written += int64(n)
	if err != nil {
		return written, err
	}

	names := make([]string, 0, len(p.Counters))
	for name := range p.Counters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fc := p.Counters[name]
		n, err = fmt.Fprintf(bw, "func: %s\n", name)
		written += int64(n)
		if err != nil {
			return written, err
		}

		lines := make([]int64, 0, len(fc))
		for line := range fc {
			lines = append(lines, line)
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })

		for _, line := range lines {
			n, err = fmt.Fprintf(bw, "%d %d\n", line, fc[line])
			written += int64(n)
			if err != nil {
				return written, err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return written, err
	}
	// TotalWeight is not serialized; ReadFrom recomputes it.
	return written, nil
}

// ReadFrom parses the format WriteTo produces.
func (p *Profile) ReadFrom(r io.Reader) (int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() {
		return 0, fmt.Errorf("pgo: empty profile")
	}
	if sc.Text()+"\n" != serializationHeader {
		return 0, fmt.Errorf("pgo: bad header %q", sc.Text())
	}

	p.Counters = make(map[string]FunctionCounters)
	p.TotalWeight = 0

	var cur string
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "func: "); ok {
			cur = name
			if _, exists := p.Counters[cur]; !exists {
				p.Counters[cur] = make(FunctionCounters)
			}
			continue
		}
		if cur == "" {
			return 0, fmt.Errorf("pgo: counter line before any func: header")
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return 0, fmt.Errorf("pgo: malformed counter line %q", line)
		}
		lineNo, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("pgo: bad line number %q: %w", fields[0], err)
		}
		count, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("pgo: bad counter %q: %w", fields[1], err)
		}
		p.Counters[cur][lineNo] = count
		p.TotalWeight += count
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, nil
}
