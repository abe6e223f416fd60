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

import "testing"

func TestFormatMarkerRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 42, 999999} {
		line := FormatMarker(n)
		tag, _, ok := ParseMarker(line)
		if !ok {
			t.Fatalf("ParseMarker(%q) not ok", line)
		}
		if tag != n {
			t.Errorf("FormatMarker(%d) -> %q -> tag %d, want %d", n, line, tag, n)
		}
	}
}

func TestFormatCommentedPragmaRoundTrip(t *testing.T) {
	line := FormatCommentedPragma(7, `#include <gtest/gtest.h>`)
	tag, payload, ok := ParseCommentedPragma(line)
	if !ok {
		t.Fatalf("ParseCommentedPragma(%q) not ok", line)
	}
	if tag != 7 {
		t.Errorf("tag = %d, want 7", tag)
	}
	want := "#include <gtest/gtest.h>\n"
	if payload != want {
		t.Errorf("payload = %q, want %q", payload, want)
	}
}

func TestParseMarkerRejectsNearMiss(t *testing.T) {
	// "int x;\n" looks marker-shaped but its body isn't an integer.
	if _, _, ok := ParseMarker("int x;\n"); ok {
		t.Errorf("ParseMarker accepted a non-numeric body")
	}
}

func TestParseLineClassifiesRegularOnNearMiss(t *testing.T) {
	got := ParseLine("int x;\n")
	if got.Kind != Regular {
		t.Errorf("Kind = %v, want Regular", got.Kind)
	}
}

func TestParseLineClassifiesMarkerAndPragma(t *testing.T) {
	m := ParseLine(FormatMarker(3))
	if m.Kind != MarkerLine || m.Tag != 3 {
		t.Errorf("marker line classified as %+v", m)
	}
	p := ParseLine(FormatCommentedPragma(3, "#include <a.h>"))
	if p.Kind != PragmaLine || p.Tag != 3 {
		t.Errorf("pragma line classified as %+v", p)
	}
	if p.Payload != "#include <a.h>\n" {
		t.Errorf("payload = %q", p.Payload)
	}
}

func TestParseCommentedPragmaRequiresDelimiter(t *testing.T) {
	// No '#' inside the comment body: not a pragma line.
	if _, _, ok := ParseCommentedPragma("/* 3no delimiter here */\n"); ok {
		t.Errorf("accepted a comment with no '#' as a commented pragma")
	}
}

func TestParseCommentedPragmaNegativeTagRejected(t *testing.T) {
	if _, _, ok := ParseCommentedPragma("/* -1#include <a.h> */\n"); ok {
		t.Errorf("accepted a negative tag")
	}
}
