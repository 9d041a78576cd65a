package pool

// Stats is a point-in-time snapshot of pool state. The instantaneous fields
// (Alive, Working, Queued) are read under their respective locks but may be
// stale by the time the caller looks at them; the cumulative counters are
// monotonic.
type Stats struct {
	Alive   int // workers inside their main loop
	Working int // workers inside a user function
	Queued  int // jobs waiting to be pulled

	Submitted uint64 // accepted submissions
	Completed uint64 // jobs that ran to completion
	Failed    uint64 // jobs that panicked
	Rejected  uint64 // submissions refused after Destroy began
}

// Stats returns a snapshot of the pool's counters, suitable for exporting
// to a metrics backend or printing from a benchmark harness.
func (p *Pool) Stats() Stats {
	p.countMu.Lock()
	alive, working := p.numAlive, p.numWorking
	p.countMu.Unlock()

	return Stats{
		Alive:     alive,
		Working:   working,
		Queued:    p.queue.len(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
