// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package incguard

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config groups the fields of a resolved run configuration (spec.md
// §3, §6). cmd/incguard's main does not build one: it assembles a
// ChildSpec, IO pairs and a PipelineSpec directly from its flags. It
// holds no flag.FlagSet state of its own, following the teacher's split
// between cmdline.go's thin parsing helpers and the package-level
// flag vars that live in cmd/kati/main.go.
type Config struct {
	Stages []string
	Ranges []Range

	Child ChildSpec

	Inputs       []string
	Outputs      []string
	TestMode     bool
	Workers      int // 0 means "compute from WorkerCount"
	KeepComments bool
}

// ExpandAtFile reads one path per line from path (an argument whose
// leading '@' has already been stripped), per spec.md §6 "a token
// prefixed with @ denotes a file from which one path per line is
// read". Blank lines are skipped.
func ExpandAtFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("@-file %q: %w", path, err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("@-file %q: %w", path, err)
	}
	return paths, nil
}

// ExpandPathArgs expands every token in args that starts with '@' via
// ExpandAtFile, passing everything else through unchanged (spec.md
// §6).
func ExpandPathArgs(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		if strings.HasPrefix(a, "@") {
			expanded, err := ExpandAtFile(a[1:])
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// CheckUnambiguousStdin rejects more than one "-" among inputs
// (spec.md §6 "ambiguous `-` usage (more than one stdin)" is a
// mandatory configuration error, surfaced before any work starts).
// Grounded on the original's Arguments._paths_in, which raises
// ArgumentError("Stdin ('-') can be processed only once.") under the
// same condition.
func CheckUnambiguousStdin(inputs []string) error {
	cnt := 0
	for _, in := range inputs {
		if in == "-" {
			cnt++
		}
	}
	if cnt > 1 {
		return fmt.Errorf("ambiguous input: stdin (\"-\") given %d times, can be processed only once", cnt)
	}
	return nil
}

// BuildIOPairs zips inputs and outputs positionally, stopping at the
// shorter sequence (spec.md §6 "Input/output pairing"). With no
// outputs, every input pairs with stdout ("-"). In test mode every
// input pairs with the null sink (the empty path, see openOutput).
func BuildIOPairs(inputs, outputs []string, testMode bool) []IOPair {
	if testMode {
		pairs := make([]IOPair, len(inputs))
		for i, in := range inputs {
			pairs[i] = IOPair{Input: in, Output: ""}
		}
		return pairs
	}
	if len(outputs) == 0 {
		pairs := make([]IOPair, len(inputs))
		for i, in := range inputs {
			pairs[i] = IOPair{Input: in, Output: "-"}
		}
		return pairs
	}
	n := len(inputs)
	if len(outputs) < n {
		n = len(outputs)
	}
	pairs := make([]IOPair, n)
	for i := 0; i < n; i++ {
		pairs[i] = IOPair{Input: inputs[i], Output: outputs[i]}
	}
	return pairs
}

// ParseRange parses one "U,L" range token per spec.md §6
// ("Line-range syntax"): two integers, not normalised, with the
// semantics emit line i iff L < i < U.
func ParseRange(token string) (Range, error) {
	parts := strings.SplitN(token, ",", 2)
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("range %q: want U,L", token)
	}
	upper, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, fmt.Errorf("range %q: bad upper bound: %w", token, err)
	}
	lower, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Range{}, fmt.Errorf("range %q: bad lower bound: %w", token, err)
	}
	return Range{Upper: upper, Lower: lower}, nil
}

// ParseRanges applies ParseRange to every token.
func ParseRanges(tokens []string) ([]Range, error) {
	var ranges []Range
	for _, t := range tokens {
		r, err := ParseRange(t)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// ParseBuffering maps a -stdin-buffering/-stdout-buffering flag value
// to a Buffering constant. The empty string and "default" both mean
// BufferDefault.
func ParseBuffering(s string) (Buffering, error) {
	switch s {
	case "", "default":
		return BufferDefault, nil
	case "line":
		return BufferLine, nil
	case "0", "none", "zero":
		return BufferZero, nil
	default:
		return BufferDefault, fmt.Errorf("unknown buffering %q", s)
	}
}

// DefaultChildArgv builds the default preprocessor invocation from
// spec.md §6: "clang -E -P [-C] [-D<def>...] [extra...] -". -C is
// included iff keepComments is true.
func DefaultChildArgv(defines []string, extra []string, keepComments bool) []string {
	argv := []string{"clang", "-E", "-P"}
	if keepComments {
		argv = append(argv, "-C")
	}
	for _, d := range defines {
		argv = append(argv, "-D"+d)
	}
	argv = append(argv, extra...)
	argv = append(argv, "-")
	return argv
}

// ResolveLogLevel maps the LOG_LEVEL environment variable (spec.md
// §6) to a glog verbosity level. Recognised names follow the usual
// syslog-ish scale; anything else is ignored, leaving glog's own
// -v flag in control. The caller is responsible for actually applying
// the result, e.g. via flag.Lookup("v").Value.Set.
func ResolveLogLevel() (level int, ok bool) {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return 2, true
	case "info":
		return 1, true
	case "warn", "warning", "error":
		return 0, true
	default:
		return 0, false
	}
}

const defaultChildTimeout = 30 * time.Second
