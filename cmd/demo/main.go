package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskforge/taskforge/pkg/pool"
)

// Two small walkthroughs of the pool API.
//
//	go run cmd/demo/main.go drain   # batch of slow jobs, wait, destroy
//	go run cmd/demo/main.go pause   # pause before work, resume, destroy

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/demo/main.go <drain|pause>")
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	switch os.Args[1] {
	case "drain":
		runDrain(logger)
	case "pause":
		runPause(logger)
	default:
		log.Fatalf("unknown mode %q, want drain or pause", os.Args[1])
	}
}

// runDrain pushes 40 two-second jobs through a 4-worker pool, waits for the
// drain and destroys the pool. With 4 workers the batch takes about 20s.
func runDrain(logger zerolog.Logger) {
	p := pool.New(4, pool.WithLogger(logger))

	fmt.Println("Adding 40 tasks to the pool")
	for i := 0; i < 40; i++ {
		err := p.AddWork(func(arg any) {
			fmt.Printf("working on task #%d\n", arg.(int))
			time.Sleep(2 * time.Second)
		}, i)
		if err != nil {
			log.Fatalf("submission failed: %v", err)
		}
	}

	p.Wait()
	fmt.Println("All tasks finished, destroying pool")
	p.Destroy()
}

// runPause submits work to a paused pool and shows that nothing starts
// before Resume. Destroy then drains the two 4-second sleeps.
func runPause(logger zerolog.Logger) {
	p := pool.New(2, pool.WithLogger(logger))

	p.Pause()

	for i := 0; i < 2; i++ {
		err := p.AddWork(func(any) {
			time.Sleep(4 * time.Second)
			fmt.Println("SLEPT")
		}, nil)
		if err != nil {
			log.Fatalf("submission failed: %v", err)
		}
	}

	fmt.Println("Pool is paused; main sleeps for 3 seconds")
	time.Sleep(3 * time.Second)

	fmt.Println("Resuming workers")
	p.Resume()

	fmt.Println("Main sleeps for 2 seconds while the jobs run")
	time.Sleep(2 * time.Second)

	fmt.Println("Waiting for work to finish")
	p.Destroy()
}
