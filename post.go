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

import "io"

// PostStage reconstructs which #include lines survived conditional
// compilation by sliding a two-line window (cur, nxt) over in and
// classifying each pair per the table in spec.md §4.5.
//
// Tags are not required to match between a Marker and its following
// CommentedPragma (spec.md §9 open question (i)); this is preserved
// as observed behaviour, not tightened here.
func PostStage(in LineReader) LineReader {
	var (
		cur, nxt   string
		haveCur    bool
		skip       bool
		done       bool
		finalEmit  string
		finalReady bool
	)

	advance := func() error {
		if !haveCur {
			c, err := in.Next()
			if err != nil {
				if err != io.EOF {
					return err
				}
				// Zero lines total: empty sequence per spec.md §4.5.
				done = true
				return io.EOF
			}
			cur, haveCur = c, true
			n, err := in.Next()
			if err != nil {
				if err != io.EOF {
					return err
				}
				// Fewer than two lines total: empty sequence per spec.md §4.5.
				done = true
				return io.EOF
			}
			nxt = n
			return nil
		}
		cur = nxt
		n, err := in.Next()
		if err == io.EOF {
			// cur now holds the former nxt, which is the final line.
			finalEmit = cur
			finalReady = true
			if skip {
				finalReady = false
			}
			done = true
			return io.EOF
		}
		if err != nil {
			return err
		}
		nxt = n
		return nil
	}

	return NewFuncLineReader(func() (string, error) {
		for {
			if done {
				if finalReady {
					finalReady = false
					return finalEmit, nil
				}
				return "", io.EOF
			}
			if err := advance(); err != nil {
				if err == io.EOF {
					continue
				}
				return "", err
			}

			if skip {
				skip = false
				return "\n", nil
			}

			_, _, mOK := ParseMarker(cur)
			_, _, pOK := ParseCommentedPragma(nxt)

			switch {
			case mOK && pOK:
				_, payload, _ := ParseCommentedPragma(nxt)
				skip = true
				return payload, nil
			case !mOK && pOK:
				skip = true
				return "", nil
			case mOK && !pOK:
				return "", nil
			default: // !mOK && !pOK
				return cur, nil
			}
		}
	})
}
