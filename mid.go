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

// MidLineReader is the LineReader returned by MidStage. It also
// implements io.Closer so a caller that abandons consumption partway
// through (spec.md §4.4 "If the downstream cancels consumption") can
// still force the Child session to shut down.
type MidLineReader interface {
	LineReader
	io.Closer
}

// MidStage drives an external preprocessor as a co-process, streaming
// in into its stdin and yielding its stdout back as a lazy sequence
// (spec.md §4.4). The Child session is opened on first demand and
// released (per §4.3's shutdown contract) once both cooperative loops
// below have completed.
func MidStage(in LineReader, spec ChildSpec) MidLineReader {
	var (
		child       *Child
		startErr    error
		started     bool
		stdoutQ     *lineQueue
		closeErr    error
		closed      bool
		upstreamErr error
	)

	start := func() {
		started = true
		child, startErr = StartChild(spec)
		if startErr != nil {
			return
		}
		stdoutQ = child.StdoutQueue()
		go feedStdin(in, child.StdinQueue(), &upstreamErr)
	}

	finish := func() {
		if closed || child == nil {
			return
		}
		closed = true
		closeErr = child.Close()
	}

	next := func() (string, error) {
		if !started {
			start()
		}
		if startErr != nil {
			return "", startErr
		}
		item := stdoutQ.Get()
		if item.eof {
			finish()
			if upstreamErr != nil {
				return "", upstreamErr
			}
			if closeErr != nil {
				return "", closeErr
			}
			return "", io.EOF
		}
		return item.line, nil
	}
	return &midLineReader{next: next, close: finish}
}

type midLineReader struct {
	next  func() (string, error)
	close func()
}

func (m *midLineReader) Next() (string, error) { return m.next() }

func (m *midLineReader) Close() error {
	m.close()
	return nil
}

// feedStdin drains in into q, finally enqueuing the EOF sentinel
// (spec.md §4.4 step 1). It runs as its own goroutine so the mid
// stage can concurrently drain the child's stdout without deadlocking
// against a full stdin queue. A non-EOF read error is recorded in
// *errOut for MidStage to surface once the child's stdout has drained
// (spec.md §7 "Upstream read ... error — propagates out of the
// worker").
func feedStdin(in LineReader, q *lineQueue, errOut *error) {
	for {
		line, err := in.Next()
		if err != nil {
			if err != io.EOF {
				*errOut = err
			}
			q.PutEOF()
			return
		}
		q.PutLine(line)
	}
}
