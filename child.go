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
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/golang/glog"
)

// Buffering selects how the child's stdin/stdout should be buffered.
type Buffering int

const (
	// BufferDefault leaves the child's own buffering untouched.
	BufferDefault Buffering = iota
	// BufferLine forces line buffering.
	BufferLine
	// BufferZero forces unbuffered IO.
	BufferZero
)

// ChildSpec configures one Child coprocess invocation.
type ChildSpec struct {
	// Script, if non-empty, is a single shell command run via the
	// shell (spec.md §6 "Alternative: a user-supplied shell command
	// string runs as a single shell invocation").
	Script string
	// Argv is used when Script is empty: argv[0] plus its arguments.
	Argv []string

	StdinBuffering  Buffering
	StdoutBuffering Buffering
	// BufferHelperPath is the resolved path to the stdbuf-style
	// buffering helper; required when either buffering field is
	// non-default.
	BufferHelperPath string

	QueueSize    int
	PollPeriod   time.Duration
	ChildTimeout time.Duration
}

// Child owns one spawned preprocessor process and the three bounded
// line queues (and carrier threads) that shuttle lines across its
// pipes (spec.md §3 "Child session", §4.3).
type Child struct {
	spec ChildSpec
	cmd  *exec.Cmd

	stdinQ  *lineQueue // lines to write to the child's stdin
	stdoutQ *lineQueue // lines read from the child's stdout
	stderrQ *lineQueue // lines read from the child's stderr

	done map[string]chan struct{}
}

// exitError is returned when the child exits with a non-zero status.
type exitError struct {
	pid  int
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("Subprocess '%d' exited with non-zero code: %d", e.pid, e.code)
}

// StartChild spawns the preprocessor and its three carrier threads.
// The returned Child must be released with Close on every exit path.
func StartChild(spec ChildSpec) (*Child, error) {
	argv, err := buildArgv(spec)
	if err != nil {
		return nil, err
	}

	var cmd *exec.Cmd
	if spec.Script != "" {
		cmd = exec.Command("/bin/sh", "-c", spec.Script)
	} else {
		cmd = exec.Command(argv[0], argv[1:]...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("child stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("child stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("child stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}

	c := &Child{
		spec:    spec,
		cmd:     cmd,
		stdinQ:  newLineQueue(spec.QueueSize),
		stdoutQ: newLineQueue(spec.QueueSize),
		stderrQ: newLineQueue(spec.QueueSize),
		done:    make(map[string]chan struct{}),
	}
	for _, name := range []string{"writer", "reader", "reporter"} {
		c.done[name] = make(chan struct{})
	}

	go c.runWriter(stdin)
	go c.runReader(stdout)
	go c.runReporter(stderr)

	return c, nil
}

// buildArgv resolves the final argv for a non-script invocation,
// optionally wrapping it with the buffering helper (spec.md §6).
func buildArgv(spec ChildSpec) ([]string, error) {
	if spec.Script != "" {
		return nil, nil
	}
	argv := append([]string(nil), spec.Argv...)
	needsHelper := spec.StdinBuffering != BufferDefault || spec.StdoutBuffering != BufferDefault
	if !needsHelper {
		return argv, nil
	}
	if spec.StdinBuffering == BufferLine {
		return nil, fmt.Errorf("line-buffered stdin on the child is not supported")
	}
	if spec.BufferHelperPath == "" {
		return nil, fmt.Errorf("buffering requested but the buffering helper was not found on PATH")
	}
	wrapped := []string{spec.BufferHelperPath}
	if spec.StdinBuffering == BufferZero {
		wrapped = append(wrapped, "-i0")
	}
	switch spec.StdoutBuffering {
	case BufferLine:
		wrapped = append(wrapped, "-oL")
	case BufferZero:
		wrapped = append(wrapped, "-o0")
	}
	return append(wrapped, argv...), nil
}

func (c *Child) runWriter(w io.WriteCloser) {
	defer close(c.done["writer"])
	for {
		item := c.stdinQ.Get()
		if item.eof {
			w.Close()
			return
		}
		if _, err := w.Write([]byte(item.line)); err != nil {
			w.Close()
			return
		}
	}
}

func (c *Child) runReader(r io.Reader) {
	defer close(c.done["reader"])
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		c.stdoutQ.PutLine(sc.Text() + "\n")
	}
	c.stdoutQ.PutEOF()
}

func (c *Child) runReporter(r io.Reader) {
	defer close(c.done["reporter"])
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		glog.Warningf("%s", line)
		c.stderrQ.PutLine(line + "\n")
	}
	c.stderrQ.PutEOF()
}

// StdinQueue returns the queue feeding the child's stdin.
func (c *Child) StdinQueue() *lineQueue { return c.stdinQ }

// StdoutQueue returns the queue draining the child's stdout.
func (c *Child) StdoutQueue() *lineQueue { return c.stdoutQ }

// StderrQueue returns the queue draining the child's stderr.
func (c *Child) StderrQueue() *lineQueue { return c.stderrQ }

// Close joins the three carrier threads and waits for the child to
// exit, per the shutdown contract in spec.md §4.3. It must be called
// exactly once: a second call waits on the process again and reports
// an error. MidStage's Close wrapper guards against repeat calls. The
// mid stage is responsible for having already enqueued the stdin EOF
// sentinel and drained stdout to its EOF sentinel before calling Close.
func (c *Child) Close() error {
	c.joinWithWarnings("writer")
	c.joinWithWarnings("reader")
	c.joinWithWarnings("reporter")

	waitErr := make(chan error, 1)
	go func() { waitErr <- c.cmd.Wait() }()

	timeout := c.spec.ChildTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case err := <-waitErr:
		return c.classifyExit(err)
	case <-time.After(timeout):
		c.cmd.Process.Kill()
		err := <-waitErr
		return fmt.Errorf("child-exit timeout after %s: %w", timeout, err)
	}
}

func (c *Child) classifyExit(err error) error {
	if err == nil {
		return nil
	}
	pid := -1
	if c.cmd.Process != nil {
		pid = c.cmd.Process.Pid
	}
	code := 1
	if exit, ok := err.(*exec.ExitError); ok {
		if ws, ok := exit.ProcessState.Sys().(syscall.WaitStatus); ok {
			code = ws.ExitStatus()
		}
	}
	return &exitError{pid: pid, code: code}
}

func (c *Child) joinWithWarnings(name string) {
	poll := c.spec.PollPeriod
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	ch := c.done[name]
	for {
		select {
		case <-ch:
			return
		case <-time.After(poll):
			glog.Warningf("carrier thread %q has not exited yet; stdin queue depth=%d stdout queue depth=%d",
				name, c.stdinQ.Depth(), c.stdoutQ.Depth())
		}
	}
}
