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
	"io"
	"math/rand"
	"os"
)

// Stage names recognised in the -stages flag (spec.md §3).
const (
	StagePre  = "pre"
	StageMid  = "mid"
	StagePost = "post"
	StageFull = "full"
)

// Range is one (upper, lower) pair from spec.md §3/§6: a line at
// zero-based index i participates iff lower < i < upper. The two
// bounds are stored in the order given on the command line and are
// never normalised (spec.md §9 open question (ii)).
type Range struct {
	Upper int
	Lower int
}

// IOPair is one (input path, output path) pairing (spec.md §3). Path
// "-" denotes stdin/stdout.
type IOPair struct {
	Input  string
	Output string
}

// RangeSelect keeps only lines whose zero-based stream index i
// satisfies lower < i < upper for some range in ranges (spec.md §3,
// §4.6). With no ranges, it is the identity stage.
func RangeSelect(in LineReader, ranges []Range) LineReader {
	if len(ranges) == 0 {
		return in
	}
	idx := -1
	return NewFuncLineReader(func() (string, error) {
		for {
			line, err := in.Next()
			if err != nil {
				return "", err
			}
			idx++
			for _, r := range ranges {
				if r.Lower < idx && idx < r.Upper {
					return line, nil
				}
			}
		}
	})
}

// PipelineSpec configures one run of the filter pipeline for a single
// IO pair (spec.md §4.6).
type PipelineSpec struct {
	Stages []string // subset of {pre, mid, post}; StageFull expands to all three
	Ranges []Range
	Child  ChildSpec
	RNG    *rand.Rand // tag source for the pre stage; see NewTagSource
}

func hasStage(stages []string, name string) bool {
	for _, s := range stages {
		if s == StageFull || s == name {
			return true
		}
	}
	return false
}

// compose builds the pre -> (range-select already applied upstream)
// -> mid -> post chain, substituting identity for any stage not
// selected (spec.md §4.6 "Stages not selected are replaced with an
// identity pass-through"). It also returns the mid stage's Closer
// directly (nil if mid wasn't selected), since a later stage such as
// post wraps it in a plain LineReader that no longer exposes Close.
func compose(in LineReader, spec PipelineSpec) (LineReader, io.Closer) {
	var midCloser io.Closer
	cur := in
	if hasStage(spec.Stages, StagePre) {
		cur = PreStage(cur, spec.RNG)
	}
	if hasStage(spec.Stages, StageMid) {
		mid := MidStage(cur, spec.Child)
		midCloser = mid
		cur = mid
	}
	if hasStage(spec.Stages, StagePost) {
		cur = PostStage(cur)
	}
	return cur, midCloser
}

// RunFilter opens pair's input and output, applies range-select then
// the stage composition, and writes the result. An empty output path
// (test mode) writes to io.Discard, see openOutput. Grounded on the teacher's
// execContext orchestration (own state, drive a sequence of steps,
// propagate errors up) in exec.go.
func RunFilter(pair IOPair, spec PipelineSpec) (err error) {
	in, closeIn, err := openInput(pair.Input)
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(pair.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	reader := NewLineReader(in)
	selected := RangeSelect(reader, spec.Ranges)
	final, midCloser := compose(selected, spec)
	if midCloser != nil {
		defer midCloser.Close()
	}

	return DrainLines(out, final)
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	switch path {
	case "-":
		return os.Stdout, func() {}, nil
	case "":
		return io.Discard, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
