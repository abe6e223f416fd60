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

func TestChildEchoesStdinToStdout(t *testing.T) {
	c, err := StartChild(ChildSpec{
		Argv:         []string{"cat"},
		QueueSize:    4,
		PollPeriod:   50 * time.Millisecond,
		ChildTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("StartChild: %v", err)
	}

	lines := []string{"one\n", "two\n", "three\n"}
	for _, l := range lines {
		c.StdinQueue().PutLine(l)
	}
	c.StdinQueue().PutEOF()

	var got []string
	for {
		item := c.StdoutQueue().Get()
		if item.eof {
			break
		}
		got = append(got, item.line)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(got) != len(lines) {
		t.Fatalf("got %d lines, want %d: %q", len(got), len(lines), got)
	}
	for i, l := range lines {
		if got[i] != l {
			t.Errorf("line %d = %q, want %q", i, got[i], l)
		}
	}
}

func TestChildNonZeroExitSurfacesExitError(t *testing.T) {
	c, err := StartChild(ChildSpec{
		Script:       "exit 3",
		QueueSize:    4,
		PollPeriod:   50 * time.Millisecond,
		ChildTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("StartChild: %v", err)
	}
	c.StdinQueue().PutEOF()
	for {
		item := c.StdoutQueue().Get()
		if item.eof {
			break
		}
	}
	err = c.Close()
	if err == nil {
		t.Fatalf("Close: want an error for exit code 3, got nil")
	}
	ee, ok := err.(*exitError)
	if !ok {
		t.Fatalf("Close error is %T, want *exitError", err)
	}
	if ee.code != 3 {
		t.Errorf("exit code = %d, want 3", ee.code)
	}
}

func TestChildStderrIsRelayed(t *testing.T) {
	c, err := StartChild(ChildSpec{
		Script:       "echo oops 1>&2",
		QueueSize:    4,
		PollPeriod:   50 * time.Millisecond,
		ChildTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("StartChild: %v", err)
	}
	c.StdinQueue().PutEOF()
	for {
		item := c.StdoutQueue().Get()
		if item.eof {
			break
		}
	}
	var stderrLines []string
	for {
		item := c.StderrQueue().Get()
		if item.eof {
			break
		}
		stderrLines = append(stderrLines, item.line)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(stderrLines) != 1 || stderrLines[0] != "oops\n" {
		t.Errorf("stderr lines = %q, want [\"oops\\n\"]", stderrLines)
	}
}

func TestBuildArgvRejectsLineBufferedStdin(t *testing.T) {
	_, err := buildArgv(ChildSpec{
		Argv:           []string{"cat"},
		StdinBuffering: BufferLine,
	})
	if err == nil {
		t.Fatalf("want an error for line-buffered stdin, got nil")
	}
}

func TestBuildArgvWrapsWithBufferingHelper(t *testing.T) {
	argv, err := buildArgv(ChildSpec{
		Argv:             []string{"cat"},
		StdoutBuffering:  BufferLine,
		BufferHelperPath: "/usr/bin/stdbuf",
	})
	if err != nil {
		t.Fatalf("buildArgv: %v", err)
	}
	want := []string{"/usr/bin/stdbuf", "-oL", "cat"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %q, want %q", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}
