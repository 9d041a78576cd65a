package integration

// ============================================================================
// Pool Integration Tests
// Purpose: End-to-end scenarios through the public API only
// ============================================================================

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/pkg/pool"
)

// TestSequentialDrain pushes a batch of slow jobs through a small pool and
// checks that Wait releases only after every job ran exactly once.
func TestSequentialDrain(t *testing.T) {
	p := pool.New(4)
	defer p.Destroy()

	const jobs = 40
	jobTime := 50 * time.Millisecond

	var count atomic.Int64
	start := time.Now()
	for i := 0; i < jobs; i++ {
		require.NoError(t, p.AddWork(func(any) {
			time.Sleep(jobTime)
			count.Add(1)
		}, nil))
	}
	p.Wait()
	elapsed := time.Since(start)

	assert.Equal(t, int64(jobs), count.Load())
	assert.Equal(t, 0, p.NumWorking())

	// 40 jobs over 4 workers is 10 sequential rounds.
	assert.GreaterOrEqual(t, elapsed, 10*jobTime)
}

// TestPauseBeforeWork mirrors the pause walkthrough: submissions made while
// paused must not start until Resume, then complete before Destroy returns.
func TestPauseBeforeWork(t *testing.T) {
	p := pool.New(2)

	p.Pause()

	var started, finished atomic.Int64
	for i := 0; i < 2; i++ {
		require.NoError(t, p.AddWork(func(any) {
			started.Add(1)
			time.Sleep(200 * time.Millisecond)
			finished.Add(1)
		}, nil))
	}

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, int64(0), started.Load(), "no job may start before Resume")

	p.Resume()
	p.Destroy()

	assert.Equal(t, int64(2), finished.Load(), "both jobs must complete before Destroy returns")
}

// TestElasticGrowthAndShrink drives a backlog through an elastic pool and
// watches the manager scale up under load and back down when idle.
func TestElasticGrowthAndShrink(t *testing.T) {
	p, err := pool.NewElastic(pool.ElasticConfig{
		MinWorkers: 3,
		MaxWorkers: 10,
		Batch:      2,
		Tick:       20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer p.Destroy()

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		require.NoError(t, p.AddWork(func(any) {
			time.Sleep(30 * time.Millisecond)
			count.Add(1)
		}, nil))
	}

	// The backlog exceeds the worker count, so the manager must grow the
	// pool beyond its minimum (never past the maximum).
	require.Eventually(t, func() bool { return p.NumAlive() > 3 },
		5*time.Second, 5*time.Millisecond, "manager should grow under backlog")
	assert.LessOrEqual(t, p.NumAlive(), 10)

	p.Wait()
	assert.Equal(t, int64(100), count.Load())

	// Once drained, busy*2 < alive holds and the pool shrinks toward min.
	require.Eventually(t, func() bool { return p.NumAlive() == 3 },
		5*time.Second, 5*time.Millisecond, "manager should shrink back to min")
}

// TestFIFOOrdering submits indexed jobs to a single worker and asserts the
// observed execution order equals submission order.
func TestFIFOOrdering(t *testing.T) {
	p := pool.New(1)
	defer p.Destroy()

	const jobs = 100
	var mu sync.Mutex
	order := make([]int, 0, jobs)

	for i := 0; i < jobs; i++ {
		require.NoError(t, p.AddWork(func(arg any) {
			mu.Lock()
			order = append(order, arg.(int))
			mu.Unlock()
		}, i))
	}
	p.Wait()

	require.Len(t, order, jobs)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

// TestDestroyWithInFlightWork calls Destroy immediately after submitting:
// the pool must drain everything and interrupt nothing.
func TestDestroyWithInFlightWork(t *testing.T) {
	p := pool.New(4)

	var count atomic.Int64
	for i := 0; i < 10; i++ {
		require.NoError(t, p.AddWork(func(any) {
			time.Sleep(100 * time.Millisecond)
			count.Add(1)
		}, nil))
	}
	p.Destroy()

	assert.Equal(t, int64(10), count.Load())
	assert.Equal(t, 0, p.NumAlive())
}

// TestWakeOneWithCascade submits instant jobs back-to-back to a single
// worker; the cascading re-post keeps jobs two and three from stalling
// behind a single latch set.
func TestWakeOneWithCascade(t *testing.T) {
	p := pool.New(1)
	defer p.Destroy()

	var count atomic.Int64
	for i := 0; i < 3; i++ {
		require.NoError(t, p.AddWork(func(any) { count.Add(1) }, nil))
	}

	assert.Eventually(t, func() bool { return count.Load() == 3 },
		2*time.Second, time.Millisecond)
}

// TestManySubmitters hammers the pool from concurrent goroutines and checks
// that no submission is lost or run twice.
func TestManySubmitters(t *testing.T) {
	p := pool.New(8)
	defer p.Destroy()

	const submitters = 16
	const perSubmitter = 250

	var count atomic.Int64
	var wg sync.WaitGroup
	for s := 0; s < submitters; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSubmitter; i++ {
				if err := p.AddWork(func(any) { count.Add(1) }, nil); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	p.Wait()

	assert.Equal(t, int64(submitters*perSubmitter), count.Load())
	st := p.Stats()
	assert.Equal(t, uint64(submitters*perSubmitter), st.Completed)
}

func BenchmarkThroughput(b *testing.B) {
	p := pool.New(8)
	defer p.Destroy()

	var wg sync.WaitGroup
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wg.Add(1)
		if err := p.AddWork(func(any) { wg.Done() }, nil); err != nil {
			b.Fatal(err)
		}
	}
	wg.Wait()
}
