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
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/golang/glog"
)

// pairJob is one unit of fan-out work: run spec's pipeline over one IO
// pair. Modeled on worker.go's job, generalized from "build one Make
// target" to "run one filter pipeline over one IO pair" (spec.md
// §4.6, §4.7).
type pairJob struct {
	id   int // 1-based submission order; the completion log counts completions instead
	pair IOPair
}

type jobResult struct {
	j   *pairJob
	err error
}

// fanWorker is one persistent goroutine pulling jobs off jobChan until
// it is closed, following the worker/workerManager split in worker.go
// (a worker only knows how to run a job and report back; the manager
// owns scheduling).
type fanWorker struct {
	jobChan    <-chan *pairJob
	resultChan chan<- jobResult
	spec       PipelineSpec
}

func (w *fanWorker) run() {
	for j := range w.jobChan {
		err := RunFilter(j.pair, w.spec)
		w.resultChan <- jobResult{j: j, err: err}
	}
}

// WorkerCount returns the fan-out parallelism bound from spec.md §4.7:
// min(32, NumCPU()+4, nPairs), never less than 1.
func WorkerCount(nPairs int) int {
	n := runtime.NumCPU() + 4
	if n > 32 {
		n = 32
	}
	if nPairs < n {
		n = nPairs
	}
	if n < 1 {
		n = 1
	}
	return n
}

// syncSource wraps a rand.Source (a *rand.Rand satisfies this itself)
// with a mutex so rand.New(syncSource) produces a *rand.Rand that many
// goroutines can share safely (spec.md §5 "the random number generator
// is process-wide with a deterministic seed; concurrent access must be
// serialised").
type syncSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *syncSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *syncSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// shuffle reorders pairs in place using rng, per spec.md §4.7 ("the
// task set is shuffled before submission ... so that when multiple
// pairs write to the same sink the interleaving is non-deterministic
// by design").
func shuffle(pairs []IOPair, rng *rand.Rand) {
	for i := len(pairs) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
}

// FanOut runs spec's pipeline over every pair, bounding concurrency to
// WorkerCount(len(pairs)) persistent workers (spec.md §4.7). pairs is
// shuffled in place before submission. rng both drives the shuffle and,
// wrapped for mutual exclusion, becomes the shared tag source handed to
// every worker's pre stage; any RNG already set on spec is overridden.
//
// The first non-nil error from any worker is returned once every
// submitted job has reported back; remaining workers are allowed to
// drain rather than being cancelled, matching the teacher's
// workerManager.Run, which lets in-flight jobs finish before Wait
// returns an error.
// workers, when positive, overrides the computed WorkerCount bound
// (spec.md §6 "-j"); 0 or negative means "compute it".
func FanOut(pairs []IOPair, spec PipelineSpec, rng *rand.Rand, workers int) error {
	if len(pairs) == 0 {
		return nil
	}
	shuffle(pairs, rng)

	workerSpec := spec
	workerSpec.RNG = rand.New(&syncSource{src: rng})

	n := workers
	if n <= 0 {
		n = WorkerCount(len(pairs))
	}
	if n > len(pairs) {
		n = len(pairs)
	}
	jobChan := make(chan *pairJob)
	resultChan := make(chan jobResult)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		w := &fanWorker{jobChan: jobChan, resultChan: resultChan, spec: workerSpec}
		go func() {
			defer wg.Done()
			w.run()
		}()
	}

	go func() {
		for i, pair := range pairs {
			jobChan <- &pairJob{id: i + 1, pair: pair}
		}
		close(jobChan)
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var firstErr error
	done := 0
	for r := range resultChan {
		done++
		if r.err != nil {
			glog.Errorf("[%d/%d] %s -> %s failed: %v", done, len(pairs), r.j.pair.Input, r.j.pair.Output, r.err)
			if firstErr == nil {
				firstErr = fmt.Errorf("pair %q -> %q: %w", r.j.pair.Input, r.j.pair.Output, r.err)
			}
			continue
		}
		glog.V(1).Infof("[%d/%d] %s -> %s done", done, len(pairs), r.j.pair.Input, r.j.pair.Output)
	}
	return firstErr
}
