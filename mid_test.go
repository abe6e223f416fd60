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
	"testing"
	"time"
)

func TestMidStageStreamsThroughCat(t *testing.T) {
	in := NewSliceLineReader([]string{"a\n", "b\n", "c\n"})
	mid := MidStage(in, ChildSpec{
		Argv:         []string{"cat"},
		PollPeriod:   50 * time.Millisecond,
		ChildTimeout: 2 * time.Second,
	})
	got := drainAll(t, mid)
	if err := mid.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := []string{"a\n", "b\n", "c\n"}
	assertLines(t, want, got)
}

func TestMidStagePropagatesChildExitError(t *testing.T) {
	in := NewSliceLineReader(nil)
	mid := MidStage(in, ChildSpec{
		Script:       "exit 9",
		PollPeriod:   50 * time.Millisecond,
		ChildTimeout: 2 * time.Second,
	})
	_, err := CollectLines(mid)
	if err == nil {
		t.Fatalf("want an exit error, got nil")
	}
	if _, ok := err.(*exitError); !ok {
		t.Fatalf("err is %T, want *exitError", err)
	}
}

// TestMidStageCloseIsIdempotent checks that calling Close twice (e.g.
// once by the consumer after a partial read, once by filter.go's
// deferred cleanup) does not panic or hang (spec.md §4.4 "If the
// downstream cancels consumption").
func TestMidStageCloseIsIdempotent(t *testing.T) {
	in := NewSliceLineReader([]string{"a\n", "b\n"})
	mid := MidStage(in, ChildSpec{
		Argv:         []string{"cat"},
		PollPeriod:   50 * time.Millisecond,
		ChildTimeout: 2 * time.Second,
	})
	if _, err := mid.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := mid.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := mid.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
