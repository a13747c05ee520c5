// Package workerpool implements the node-level fan-out the SQP engine uses
// for parallel transcription and performance evaluation: a fixed number of
// workers claim grid indices from a shared atomic counter, with the calling
// goroutine contributing its own share of the work rather than sitting idle.
package workerpool

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Dispatch runs task(workerID, i) for every i in [0, n], distributing the
// range across nThreads goroutines (nThreads-1 spawned, plus the caller).
// Work is claimed from a single shared atomic counter, so nodes are handed
// out in index order but not necessarily to a predictable worker. Exactly
// one call observes i == n, matching the terminal-node convention of the
// node transcriber and performance evaluator.
//
// task returning a non-nil error stops that worker from claiming further
// indices; Dispatch returns the first such error once every worker has
// drained. nThreads < 1 is treated as 1.
func Dispatch(nThreads, n int, task func(workerID, i int) error) error {
	if nThreads < 1 {
		nThreads = 1
	}

	var index atomic.Int64
	var nextWorkerID atomic.Int64

	run := func() error {
		wid := int(nextWorkerID.Add(1) - 1)
		for {
			i := int(index.Add(1) - 1)
			if i > n {
				return nil
			}
			if err := task(wid, i); err != nil {
				return err
			}
		}
	}

	var g errgroup.Group
	for k := 1; k < nThreads; k++ {
		g.Go(run)
	}

	// The calling goroutine takes its own share instead of blocking on the
	// pool alone.
	callerErr := run()
	poolErr := g.Wait()

	if callerErr != nil {
		return callerErr
	}
	return poolErr
}

// NumWorkers clamps a configured thread count to a usable value.
func NumWorkers(nThreads int) int {
	if nThreads < 1 {
		return 1
	}
	return nThreads
}
