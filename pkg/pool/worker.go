// ============================================================================
// TaskForge Worker - Job Execution Unit
// ============================================================================
//
// Package: pkg/pool
// File: worker.go
// Function: Worker main loop, each worker runs in its own goroutine
//
// State machine per worker:
//   Starting -> Idle -> Running -> Idle -> ... -> Exiting
//
// Main loop:
//   1. Park on the hasJobs latch until a job (or a shutdown nudge) arrives.
//   2. Re-check keepAlive; once cleared, keep pulling until the queue is
//      empty, then exit (shutdown drains, never drops).
//   3. Honour the pause gate: while the pool is paused, wait on pauseCond
//      without touching the queue.
//   4. Claim an elastic exit ticket if the manager requested a shrink and
//      the pool is above its minimum.
//   5. Pull one job, run it, maintain the working counters, broadcast
//      allIdle when the working count returns to zero.
//
// Panics inside a user function are recovered, logged, and counted as a
// failed execution; the worker survives and the counters stay accurate.
//
// ============================================================================

package pool

import (
	"context"
	"runtime/pprof"
	"strconv"

	"github.com/rs/zerolog"
)

// worker is a single long-running execution unit owned by a Pool. Its id is
// its slot in the pool's worker table.
type worker struct {
	id   int
	pool *Pool
	log  zerolog.Logger
}

// run is the worker goroutine body.
func (w *worker) run() {
	p := w.pool

	// Label the goroutine so profiles attribute samples to this worker.
	pprof.SetGoroutineLabels(pprof.WithLabels(context.Background(),
		pprof.Labels("taskforge_worker", strconv.Itoa(w.id))))

	p.countMu.Lock()
	p.numAlive++
	p.aliveCond.Broadcast()
	p.countMu.Unlock()
	w.log.Debug().Msg("worker started")

	defer func() {
		p.countMu.Lock()
		p.numAlive--
		p.aliveCond.Broadcast()
		p.countMu.Unlock()
		w.log.Debug().Msg("worker exited")
	}()

	for {
		p.queue.hasJobs.wait()

		if !p.keepAlive.Load() {
			if p.queue.len() == 0 {
				return
			}
			// Shutdown in progress but jobs remain: fall through and drain.
		} else {
			w.pauseGate()
			if w.takeExitTicket() {
				return
			}
		}

		p.beginWork()
		if j := p.queue.pull(); j != nil {
			w.execute(j)
		}
		p.endWork()
	}
}

// pauseGate blocks while the pool is paused. Destroy clears the flag and
// broadcasts, so a paused worker can always make progress toward exit.
func (w *worker) pauseGate() {
	p := w.pool
	if !p.paused.Load() {
		return
	}
	p.pauseMu.Lock()
	for p.paused.Load() && p.keepAlive.Load() {
		p.pauseCond.Wait()
	}
	p.pauseMu.Unlock()
}

// takeExitTicket claims one manager-issued exit request. A ticket is only
// consumed on an idle wake (empty queue), and only results in an exit while
// the pool is above its minimum, mirroring the shrink contract.
func (w *worker) takeExitTicket() bool {
	p := w.pool
	if p.elastic == nil {
		return false
	}
	p.countMu.Lock()
	if p.exitCount > 0 && p.queue.len() == 0 {
		p.exitCount--
		if p.numAlive > p.elastic.MinWorkers {
			p.workers[w.id] = nil // free the slot for the manager to reuse
			p.countMu.Unlock()
			w.log.Debug().Msg("worker exiting on shrink request")
			return true
		}
	}
	p.countMu.Unlock()
	return false
}

// execute runs a single job, recovering from panics so one bad job cannot
// take the worker (and its counters) down with it.
func (w *worker) execute(j *job) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.failed.Add(1)
			w.log.Error().Interface("panic", r).Msg("job panicked")
		}
	}()
	j.fn(j.arg)
	w.pool.completed.Add(1)
}

// beginWork and endWork bracket a job execution. The elastic busy count is
// kept under its own mutex so the manager never contends with Wait or the
// queue for a snapshot.
func (p *Pool) beginWork() {
	p.countMu.Lock()
	p.numWorking++
	p.countMu.Unlock()
	if p.elastic != nil {
		p.busyMu.Lock()
		p.busyCount++
		p.busyMu.Unlock()
	}
}

func (p *Pool) endWork() {
	if p.elastic != nil {
		p.busyMu.Lock()
		p.busyCount--
		p.busyMu.Unlock()
	}
	p.countMu.Lock()
	p.numWorking--
	if p.numWorking == 0 {
		p.allIdle.Broadcast()
	}
	p.countMu.Unlock()
}
