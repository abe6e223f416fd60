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
	"strconv"
	"strings"
)

const (
	markerPrefix = "int "
	markerSuffix = ";\n"

	pragmaPrefix = "/* "
	pragmaSuffix = " */\n"
	pragmaDelim  = '#'
)

// lineKind distinguishes the three shapes a line can take after the
// pre stage has run over it.
type lineKind int

const (
	// Regular is any line that isn't a marker or a commented pragma.
	Regular lineKind = iota
	// MarkerLine is "int <N>;\n".
	MarkerLine
	// PragmaLine is "/* <N>#include ... */\n".
	PragmaLine
)

// taggedLine is the result of parsing one line. Tag is -1 when Kind is
// Regular, or when the line merely looks like a marker/pragma but its
// tag region fails to parse as a non-negative integer.
type taggedLine struct {
	Kind    lineKind
	Tag     int
	Payload string
	raw     string
}

// ParseMarker reports whether line has the exact shape "int <N>;\n"
// and, if so, returns its tag. Tag is -1 if the framing matches but
// the inner region isn't a non-negative integer; a near-miss line
// such as "int x;\n" yields Kind == Regular via ParseLine, not a
// Marker with Tag -1 — see ParseLine.
func ParseMarker(line string) (tag int, payload string, ok bool) {
	if !strings.HasPrefix(line, markerPrefix) || !strings.HasSuffix(line, markerSuffix) {
		return -1, "", false
	}
	inner := line[len(markerPrefix) : len(line)-len(markerSuffix)]
	n, err := parseNonNegativeInt(inner)
	if err != nil {
		return -1, "", false
	}
	return n, "", true
}

// ParseCommentedPragma reports whether line has the exact shape
// "/* <N>#<rest> */\n" and, if so, returns its tag and the original
// include text (the '#' onward, newline restored).
func ParseCommentedPragma(line string) (tag int, payload string, ok bool) {
	if !strings.HasPrefix(line, pragmaPrefix) || !strings.HasSuffix(line, pragmaSuffix) {
		return -1, "", false
	}
	inner := line[len(pragmaPrefix) : len(line)-len(pragmaSuffix)]
	idx := strings.IndexByte(inner, pragmaDelim)
	if idx < 0 {
		return -1, "", false
	}
	n, err := parseNonNegativeInt(inner[:idx])
	if err != nil {
		return -1, "", false
	}
	return n, inner[idx:] + "\n", true
}

func parseNonNegativeInt(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// ParseLine classifies line as Marker, CommentedPragma, or Regular.
// A line that merely resembles a marker or pragma but whose tag
// region does not parse is Regular, per spec: ambiguous user code
// such as "int x;" must pass through unchanged.
func ParseLine(line string) taggedLine {
	if tag, _, ok := ParseMarker(line); ok {
		return taggedLine{Kind: MarkerLine, Tag: tag, raw: line}
	}
	if tag, payload, ok := ParseCommentedPragma(line); ok {
		return taggedLine{Kind: PragmaLine, Tag: tag, Payload: payload, raw: line}
	}
	return taggedLine{Kind: Regular, Tag: -1, raw: line}
}

// FormatMarker renders the marker line for tag n.
func FormatMarker(n int) string {
	return markerPrefix + strconv.Itoa(n) + markerSuffix
}

// FormatCommentedPragma renders the commented-pragma line for tag n
// wrapping includeLine, which must not include its trailing newline.
func FormatCommentedPragma(n int, includeLine string) string {
	var b strings.Builder
	b.Grow(len(pragmaPrefix) + 8 + len(includeLine) + len(pragmaSuffix))
	b.WriteString(pragmaPrefix)
	b.WriteString(strconv.Itoa(n))
	b.WriteString(includeLine)
	b.WriteString(pragmaSuffix)
	return b.String()
}
