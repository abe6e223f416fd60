// Copyright 2020 Google Inc. All rights reserved
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
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// assertLines compares the concatenation of got against that of want,
// reporting a red/green diff on mismatch (adapted from run_test.go's Make-vs-kati
// comparison helper).
func assertLines(t *testing.T, want, got []string) {
	t.Helper()
	w := strings.Join(want, "")
	g := strings.Join(got, "")
	if w == g {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(g, w, true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	t.Errorf("output mismatch (red: got, green: want):\n%s", dmp.DiffPrettyText(diffs))
}

// drainAll reads a LineReader to completion, failing the test on any
// error other than io.EOF.
func drainAll(t *testing.T, r LineReader) []string {
	t.Helper()
	lines, err := CollectLines(r)
	if err != nil {
		t.Fatalf("CollectLines: %v", err)
	}
	return lines
}
