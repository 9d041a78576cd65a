// ============================================================================
// TaskForge Pool - Worker Pool Core
// ============================================================================
//
// Package: pkg/pool
// File: pool.go
// Function: Pool state, public API, and shutdown coordination
//
// Execution Model:
//   Submitters call AddWork, which links a job onto the FIFO queue and posts
//   the hasJobs latch. Exactly one idle worker wakes per post, pulls the head
//   job and runs it; the cascading re-post in pull keeps further workers
//   waking while a backlog remains.
//
//   ┌───────────┐ AddWork  ┌──────────┐ post  ┌──────────┐
//   │ Submitter │ ───────> │ jobQueue │ ────> │ Worker 1 │
//   └───────────┘          │  (FIFO)  │       │ Worker 2 │
//                          └──────────┘       │   ...    │
//                                             └──────────┘
//
// Counter Discipline:
//   numAlive and numWorking live under countMu. allIdle is broadcast on every
//   transition of numWorking to zero; Wait blocks on it while jobs are queued
//   or running. aliveCond is broadcast on every alive increment/decrement so
//   constructors can block instead of spinning; Destroy polls NumAlive.
//
// Shutdown Protocol (two phases):
//   1. Clear keepAlive, release paused workers, then repeatedly postAll the
//      latch for a bounded grace window so idle workers wake and exit.
//   2. Keep posting with one-second sleeps until every worker has returned.
//      This tolerates workers inside long user jobs: they drain naturally
//      and observe keepAlive on the next loop boundary.
//   Queued jobs are drained, not discarded: a worker that observes a cleared
//   keepAlive keeps pulling until the queue is empty.
//
// Ordering Guarantees:
//   Jobs are pulled in submission order as observed under the queue mutex.
//   Execution order across workers is NOT guaranteed; a later-pulled job may
//   finish first. Submitters must not rely on cross-job ordering of effects.
//
// ============================================================================

package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrPoolClosed indicates a submission arrived after Destroy began.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrNilJob indicates a submission with a nil function.
	ErrNilJob = errors.New("job function is nil")
)

// destroyGrace bounds the first shutdown phase; after it elapses, Destroy
// falls back to slow polling for workers stuck in long jobs.
const destroyGrace = time.Second

// Pool dispatches submitted jobs across a set of long-running workers in
// FIFO order. Submitted work is fire-and-forget: the pool passes the opaque
// argument through verbatim and never inspects it. A submitter that needs a
// result must encode a reply channel inside its argument.
type Pool struct {
	queue *jobQueue

	// countMu protects numAlive, numWorking, exitCount and the worker table.
	countMu    sync.Mutex
	allIdle    *sync.Cond // broadcast when numWorking drops to zero
	aliveCond  *sync.Cond // broadcast on every numAlive change
	numAlive   int
	numWorking int
	workers    []*worker // slot table, fixed size; nil marks a free slot
	exitCount  int       // pending elastic exit tickets

	keepAlive atomic.Bool
	paused    atomic.Bool
	pauseMu   sync.Mutex
	pauseCond *sync.Cond

	// busyMu keeps the elastic busy count off the hot count path so the
	// manager reads a fresh value without contending queue operations.
	busyMu    sync.Mutex
	busyCount int

	elastic     *ElasticConfig // nil for fixed-size pools
	shutdown    atomic.Bool    // manager stop flag
	managerStop chan struct{}
	managerDone chan struct{}

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64

	destroyOnce sync.Once
	log         zerolog.Logger
}

// Option customises pool construction.
type Option func(*Pool)

// WithLogger attaches a structured logger. The default logger is disabled,
// so the pool stays silent unless asked.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pool) {
		p.log = logger.With().Str("component", "pool").Logger()
	}
}

// New creates a fixed-size pool with numWorkers workers. Negative counts are
// clamped to zero. New returns only once every worker has entered its main
// loop, so a submission made immediately after New is guaranteed to reach a
// live worker.
//
// A zero-worker pool is inert: submissions queue up but never run, Wait
// blocks indefinitely once a job is queued, and Destroy discards the queued
// jobs. Callers that want back-pressure must size the pool themselves.
func New(numWorkers int, opts ...Option) *Pool {
	if numWorkers < 0 {
		numWorkers = 0
	}
	p := newPool(numWorkers, opts)

	p.countMu.Lock()
	for i := 0; i < numWorkers; i++ {
		p.spawnWorkerLocked(i)
	}
	p.countMu.Unlock()

	p.waitAlive(numWorkers)
	p.log.Debug().Int("workers", numWorkers).Msg("pool started")
	return p
}

func newPool(tableSize int, opts []Option) *Pool {
	p := &Pool{
		queue:   newJobQueue(),
		workers: make([]*worker, tableSize),
		log:     zerolog.Nop(),
	}
	p.allIdle = sync.NewCond(&p.countMu)
	p.aliveCond = sync.NewCond(&p.countMu)
	p.pauseCond = sync.NewCond(&p.pauseMu)
	p.keepAlive.Store(true)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// spawnWorkerLocked fills slot id with a fresh worker. Caller holds countMu.
// The worker increments numAlive itself once its goroutine is running.
func (p *Pool) spawnWorkerLocked(id int) {
	w := &worker{
		id:   id,
		pool: p,
		log:  p.log.With().Int("worker", id).Logger(),
	}
	p.workers[id] = w
	go w.run()
}

// waitAlive blocks until at least n workers have completed their alive
// increment.
func (p *Pool) waitAlive(n int) {
	p.countMu.Lock()
	for p.numAlive < n {
		p.aliveCond.Wait()
	}
	p.countMu.Unlock()
}

// AddWork submits fn with its argument for execution by some worker. The
// argument is borrowed: the pool never dereferences or retains it beyond the
// call. Returns ErrPoolClosed once Destroy has begun.
func (p *Pool) AddWork(fn func(arg any), arg any) error {
	if fn == nil {
		return ErrNilJob
	}
	if !p.keepAlive.Load() {
		p.rejected.Add(1)
		return ErrPoolClosed
	}
	p.queue.push(&job{fn: fn, arg: arg})
	p.submitted.Add(1)
	return nil
}

// Wait blocks until the queue is empty and no worker is inside a user
// function. It has no timeout; callers needing one must guard externally.
func (p *Pool) Wait() {
	p.countMu.Lock()
	for p.queue.len() > 0 || p.numWorking > 0 {
		p.allIdle.Wait()
	}
	p.countMu.Unlock()
}

// Pause stops workers from starting new jobs. Workers already inside a job
// finish it first; the pause takes effect at their next loop boundary.
// Pause is per-pool: other pools in the process are unaffected.
func (p *Pool) Pause() {
	p.pauseMu.Lock()
	p.paused.Store(true)
	p.pauseMu.Unlock()
	p.log.Debug().Msg("pool paused")
}

// Resume unblocks every paused worker.
func (p *Pool) Resume() {
	p.pauseMu.Lock()
	p.paused.Store(false)
	p.pauseCond.Broadcast()
	p.pauseMu.Unlock()
	p.log.Debug().Msg("pool resumed")
}

// NumWorking reports how many workers are currently inside a user function.
// The value is advisory: it may be stale by the time the caller acts on it.
func (p *Pool) NumWorking() int {
	p.countMu.Lock()
	n := p.numWorking
	p.countMu.Unlock()
	return n
}

// NumAlive reports how many workers have entered their main loop and not yet
// exited. Advisory, like NumWorking.
func (p *Pool) NumAlive() int {
	p.countMu.Lock()
	n := p.numAlive
	p.countMu.Unlock()
	return n
}

// QueueLen reports the number of jobs waiting to be pulled.
func (p *Pool) QueueLen() int {
	return p.queue.len()
}

// Destroy drains queued jobs, stops every worker and the manager, and
// releases the queue. Safe to call after Wait, safe on a nil pool, and
// idempotent. Destroy does not forcibly terminate workers inside user code;
// after the grace window it waits for them to return, unbounded. Draining is
// done by the workers, so a pool with no live workers discards its queue.
func (p *Pool) Destroy() {
	if p == nil {
		return
	}
	p.destroyOnce.Do(p.destroy)
}

func (p *Pool) destroy() {
	total := p.NumAlive()
	p.log.Info().Int("workers", total).Int("queued", p.queue.len()).Msg("destroying pool")

	// Stop the manager first so it cannot spawn workers behind our back.
	if p.managerDone != nil {
		p.shutdown.Store(true)
		close(p.managerStop)
		<-p.managerDone
	}

	p.keepAlive.Store(false)

	// Release paused workers: they re-check keepAlive and fall through to
	// the drain path.
	p.pauseMu.Lock()
	p.paused.Store(false)
	p.pauseCond.Broadcast()
	p.pauseMu.Unlock()

	// Phase one: wake idle workers for a bounded grace window.
	deadline := time.Now().Add(destroyGrace)
	for time.Now().Before(deadline) && p.NumAlive() > 0 {
		p.queue.hasJobs.postAll()
		time.Sleep(10 * time.Millisecond)
	}

	// Phase two: workers still alive are inside long jobs. Keep nudging the
	// latch so they exit as soon as they return and find the queue empty.
	for p.NumAlive() > 0 {
		p.queue.hasJobs.postAll()
		time.Sleep(time.Second)
	}

	p.queue.clear()
	p.log.Info().Msg("pool destroyed")
}
