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

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/google/incguard"
)

var (
	stagesFlag  = flag.String("stages", "full", "comma-separated subset of pre,mid,post (or full)")
	scriptFlag  = flag.String("script", "", "run this shell command instead of the default clang invocation")
	ccFlag      = flag.String("cc", "clang", "preprocessor binary used when -script is unset")
	definesFlag definesList

	keepCommentsFlag = flag.Bool("keep-comments", true, "pass -C to the preprocessor")
	queueSizeFlag    = flag.Int("queue-size", 0, "bounded queue capacity per child pipe; 0 means unbounded")
	pollPeriodFlag   = flag.Duration("poll-period", 500*time.Millisecond, "carrier-thread join poll interval")
	childTimeoutFlag = flag.Duration("child-timeout", 30*time.Second, "child-exit wait timeout")

	stdinBufferingFlag  = flag.String("stdin-buffering", "", "default, line, or 0")
	stdoutBufferingFlag = flag.String("stdout-buffering", "", "default, line, or 0")

	rangesFlag     rangeList
	jobsFlag       = flag.Int("j", 0, "worker count; 0 computes min(32, NumCPU()+4, nPairs)")
	testFlag       = flag.Bool("test", false, "discard output; used for dry runs")
	outputListFlag = flag.String("o", "", "@-style file listing one output path per line")

	incguardCPUProfile  = flag.String("incguard-cpuprofile", "", "write a CPU profile to `file`")
	incguardHeapProfile = flag.String("incguard-heapprofile", "", "write a heap profile to `file`")
)

// definesList accumulates repeatable -D flags (spec.md §6 "[-D<def>...]").
type definesList []string

func (d *definesList) String() string { return strings.Join(*d, ",") }
func (d *definesList) Set(v string) error {
	*d = append(*d, v)
	return nil
}

// rangeList accumulates repeatable -range flags.
type rangeList []string

func (r *rangeList) String() string { return strings.Join(*r, ";") }
func (r *rangeList) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func init() {
	flag.Var(&definesFlag, "D", "preprocessor define, repeatable")
	flag.Var(&rangesFlag, "range", "U,L line range, repeatable")
}

func main() {
	flag.Parse()

	if level, ok := incguard.ResolveLogLevel(); ok {
		if err := flag.Lookup("v").Value.Set(strconv.Itoa(level)); err != nil {
			glog.Errorf("LOG_LEVEL: failed to set verbosity to %d: %v", level, err)
		} else {
			glog.Infof("LOG_LEVEL overrode verbosity to %d", level)
		}
	}

	if *incguardCPUProfile != "" {
		f, err := os.Create(*incguardCPUProfile)
		if err != nil {
			glog.Exitf("cpuprofile: %v", err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}
	if *incguardHeapProfile != "" {
		defer writeHeapProfile(*incguardHeapProfile)
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err != nil {
		glog.Errorf("heapprofile: %v", err)
		return
	}
	defer f.Close()
	pprof.WriteHeapProfile(f)
}

func run(args []string) error {
	args, err := incguard.ExpandPathArgs(args)
	if err != nil {
		return err
	}

	if err := incguard.CheckUnambiguousStdin(args); err != nil {
		return err
	}

	var outputs []string
	if *outputListFlag != "" {
		outputs, err = incguard.ExpandAtFile(*outputListFlag)
		if err != nil {
			return err
		}
	}

	ranges, err := incguard.ParseRanges(rangesFlag)
	if err != nil {
		return err
	}

	stdinBuf, err := incguard.ParseBuffering(*stdinBufferingFlag)
	if err != nil {
		return err
	}
	stdoutBuf, err := incguard.ParseBuffering(*stdoutBufferingFlag)
	if err != nil {
		return err
	}

	var bufferHelper string
	if stdinBuf != incguard.BufferDefault || stdoutBuf != incguard.BufferDefault {
		bufferHelper, err = findBufferingHelper()
		if err != nil {
			return err
		}
	}

	child := incguard.ChildSpec{
		Script:           *scriptFlag,
		StdinBuffering:   stdinBuf,
		StdoutBuffering:  stdoutBuf,
		BufferHelperPath: bufferHelper,
		QueueSize:        *queueSizeFlag,
		PollPeriod:       *pollPeriodFlag,
		ChildTimeout:     *childTimeoutFlag,
	}
	if child.Script == "" {
		child.Argv = incguard.DefaultChildArgv(definesFlag, nil, *keepCommentsFlag)
		child.Argv[0] = *ccFlag
	}

	pairs := incguard.BuildIOPairs(args, outputs, *testFlag)
	if len(pairs) == 0 {
		return fmt.Errorf("no input files given")
	}

	spec := incguard.PipelineSpec{
		Stages: strings.Split(*stagesFlag, ","),
		Ranges: ranges,
		Child:  child,
	}

	rng := incguard.NewTagSource()
	return incguard.FanOut(pairs, spec, rng, *jobsFlag)
}

func findBufferingHelper() (string, error) {
	path, err := exec.LookPath("stdbuf")
	if err != nil {
		return "", fmt.Errorf("buffering requested but no buffering helper found on PATH: %w", err)
	}
	return path, nil
}
