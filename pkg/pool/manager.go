// ============================================================================
// TaskForge Manager - Elastic Worker Scaling
// ============================================================================
//
// Package: pkg/pool
// File: manager.go
// Function: Periodic loop that grows and shrinks the worker set
//
// Policy (evaluated once per tick, from three independent snapshots):
//   Growth: queued > alive && alive < max
//     -> spawn up to Batch workers into free slots of the worker table.
//        New workers increment numAlive themselves on startup.
//   Shrink: busy*2 < alive && alive > min
//     -> issue Batch exit tickets, then post the hasJobs latch Batch times
//        so that many idle workers wake, observe the request, and exit via
//        the worker's exit-ticket path.
//
// The two predicates are checked independently. Both can hold in one tick
// when a backlog meets idle workers (for instance while the pool is paused);
// the pool then grows and tickets are issued, but a ticket is only claimed
// on a wake that finds the queue empty.
//
// ============================================================================

package pool

import (
	"fmt"
	"time"
)

// Defaults for ElasticConfig fields left at zero.
const (
	defaultBatch = 2
	defaultTick  = 3 * time.Second
)

// ElasticConfig bounds an elastic pool and paces its manager.
type ElasticConfig struct {
	// MinWorkers is the floor the pool never shrinks below. Negative values
	// are clamped to zero.
	MinWorkers int
	// MaxWorkers is the ceiling the pool never grows beyond. Required.
	MaxWorkers int
	// Batch caps how many workers a single tick may spawn or retire.
	// Defaults to 2.
	Batch int
	// Tick is the manager inspection interval. Defaults to 3s.
	Tick time.Duration
}

// NewElastic creates a pool that starts at cfg.MinWorkers and lets a manager
// goroutine scale the worker set between the configured bounds based on
// observed load. Returns only once the initial workers are alive.
func NewElastic(cfg ElasticConfig, opts ...Option) (*Pool, error) {
	if cfg.MinWorkers < 0 {
		cfg.MinWorkers = 0
	}
	if cfg.MaxWorkers < 1 {
		return nil, fmt.Errorf("elastic pool: max workers must be at least 1, got %d", cfg.MaxWorkers)
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		return nil, fmt.Errorf("elastic pool: max workers %d below min %d", cfg.MaxWorkers, cfg.MinWorkers)
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultBatch
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}

	p := newPool(cfg.MaxWorkers, opts)
	p.elastic = &cfg

	p.countMu.Lock()
	for i := 0; i < cfg.MinWorkers; i++ {
		p.spawnWorkerLocked(i)
	}
	p.countMu.Unlock()
	p.waitAlive(cfg.MinWorkers)

	p.managerStop = make(chan struct{})
	p.managerDone = make(chan struct{})
	go p.manage()

	p.log.Debug().
		Int("min", cfg.MinWorkers).
		Int("max", cfg.MaxWorkers).
		Dur("tick", cfg.Tick).
		Msg("elastic pool started")
	return p, nil
}

// manage is the manager goroutine body.
func (p *Pool) manage() {
	defer close(p.managerDone)

	ticker := time.NewTicker(p.elastic.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-p.managerStop:
			return
		case <-ticker.C:
		}
		if p.shutdown.Load() {
			return
		}

		queued := p.queue.len()
		p.countMu.Lock()
		alive := p.numAlive
		p.countMu.Unlock()
		p.busyMu.Lock()
		busy := p.busyCount
		p.busyMu.Unlock()

		if queued > alive && alive < p.elastic.MaxWorkers {
			p.grow()
		}
		if busy*2 < alive && alive > p.elastic.MinWorkers {
			p.shrink()
		}
	}
}

// grow fills up to Batch free slots with new workers. Slot occupancy, not
// the alive count, bounds the spawn: a slot is claimed under countMu before
// its worker has had a chance to increment numAlive.
func (p *Pool) grow() {
	p.countMu.Lock()
	spawned := 0
	for i := 0; i < len(p.workers) && spawned < p.elastic.Batch; i++ {
		if p.workers[i] == nil {
			p.spawnWorkerLocked(i)
			spawned++
		}
	}
	p.countMu.Unlock()
	if spawned > 0 {
		p.log.Debug().Int("spawned", spawned).Msg("manager grew pool")
	}
}

// shrink issues Batch exit tickets and wakes as many idle workers to claim
// them. Tickets are overwritten, not accumulated, so repeated quiet ticks do
// not build up a backlog of exits.
func (p *Pool) shrink() {
	p.countMu.Lock()
	p.exitCount = p.elastic.Batch
	p.countMu.Unlock()

	for i := 0; i < p.elastic.Batch; i++ {
		p.queue.hasJobs.post()
	}
	p.log.Debug().Int("tickets", p.elastic.Batch).Msg("manager requested shrink")
}
