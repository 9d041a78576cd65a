// ============================================================================
// TaskForge CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra command tree for the taskforge binary
//
// Command Structure:
//   taskforge                      # Root command
//   ├── run                        # Run a pool under a synthetic workload
//   │   ├── --config, -c          # Config file (default configs/default.yaml)
//   │   ├── --rate                # Submissions per second (0 = idle pool)
//   │   └── --job-ms              # Simulated job duration
//   ├── bench                      # Fixed batch benchmark, prints stats
//   │   ├── --jobs                # Number of jobs to submit
//   │   ├── --workers             # Pool size
//   │   └── --job-ms              # Simulated job duration
//   ├── --version                  # Display version information
//   └── --help                     # Display help information
//
// run Command:
//   1. Load YAML config
//   2. Build the logger and the pool (fixed or elastic)
//   3. Start the Prometheus endpoint and the stats poll loop (if enabled)
//   4. Submit synthetic jobs at the requested rate
//   5. On SIGINT/SIGTERM, drain and destroy the pool, print final stats
//
//   The synthetic workload exists to make scaling behaviour observable:
//   point Prometheus at the metrics port, vary --rate, and watch the
//   elastic manager grow and shrink the worker set.
//
// Signal Handling:
//   run captures SIGINT and SIGTERM; shutdown drains queued jobs before
//   releasing resources.
//
// ============================================================================

package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/metrics"
	"github.com/taskforge/taskforge/pkg/pool"
)

// Config maps the YAML config file.
type Config struct {
	Pool struct {
		Workers int `yaml:"workers"`

		Elastic struct {
			Enabled     bool `yaml:"enabled"`
			Min         int  `yaml:"min"`
			Max         int  `yaml:"max"`
			Batch       int  `yaml:"batch"`
			TickSeconds int  `yaml:"tick_seconds"`
		} `yaml:"elastic"`
	} `yaml:"pool"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Log logging.Config `yaml:"log"`
}

// defaultConfig returns the configuration used when a field is absent.
func defaultConfig() Config {
	var cfg Config
	cfg.Pool.Workers = 4
	cfg.Metrics.Port = 9090
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg
}

// LoadConfig reads and parses a YAML config file, applying defaults for
// missing fields.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Pool.Workers < 0 {
		cfg.Pool.Workers = 0
	}
	return cfg, nil
}

// BuildCLI assembles the taskforge command tree.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taskforge",
		Short: "TaskForge: a worker pool with pause/resume and elastic scaling",
		Long: `TaskForge runs submitted jobs across a pool of workers in FIFO order.
The pool supports pause/resume, drain-and-wait, graceful destroy, and an
elastic variant whose manager grows and shrinks the worker set under load.`,
	}

	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildBenchCmd())
	return rootCmd
}

func buildRunCmd() *cobra.Command {
	var (
		configFile string
		rate       int
		jobMillis  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pool under a synthetic workload until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log, os.Stderr)
			return runService(cfg, logger, rate, time.Duration(jobMillis)*time.Millisecond)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")
	cmd.Flags().IntVar(&rate, "rate", 10, "synthetic submissions per second (0 = idle)")
	cmd.Flags().IntVar(&jobMillis, "job-ms", 100, "simulated job duration in milliseconds")
	return cmd
}

// newPoolFromConfig builds a fixed or elastic pool per the config.
func newPoolFromConfig(cfg Config, logger zerolog.Logger) (*pool.Pool, error) {
	if !cfg.Pool.Elastic.Enabled {
		return pool.New(cfg.Pool.Workers, pool.WithLogger(logger)), nil
	}
	return pool.NewElastic(pool.ElasticConfig{
		MinWorkers: cfg.Pool.Elastic.Min,
		MaxWorkers: cfg.Pool.Elastic.Max,
		Batch:      cfg.Pool.Elastic.Batch,
		Tick:       time.Duration(cfg.Pool.Elastic.TickSeconds) * time.Second,
	}, pool.WithLogger(logger))
}

func runService(cfg Config, logger zerolog.Logger, rate int, jobDuration time.Duration) error {
	p, err := newPoolFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	var collector *metrics.Collector
	stopPoll := make(chan struct{})
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		go collector.Poll(p, time.Second, stopPoll)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Synthetic workload: submit simulated jobs at a fixed rate so the
	// pool's behaviour is visible on the metrics endpoint.
	stopLoad := make(chan struct{})
	if rate > 0 {
		interval := time.Second / time.Duration(rate)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-stopLoad:
					return
				case <-ticker.C:
					err := p.AddWork(func(any) {
						start := time.Now()
						time.Sleep(jobDuration)
						if collector != nil {
							collector.ObserveDuration(time.Since(start))
						}
					}, nil)
					if err != nil {
						return
					}
				}
			}
		}()
	}

	logger.Info().Int("rate", rate).Dur("job_duration", jobDuration).Msg("pool running, press Ctrl+C to stop")
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	close(stopLoad)
	p.Destroy()
	close(stopPoll)

	st := p.Stats()
	fmt.Printf("submitted=%d completed=%d failed=%d rejected=%d\n",
		st.Submitted, st.Completed, st.Failed, st.Rejected)
	return nil
}

func buildBenchCmd() *cobra.Command {
	var (
		jobs      int
		workers   int
		jobMillis int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Push a fixed batch of jobs through a pool and print throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(jobs, workers, time.Duration(jobMillis)*time.Millisecond)
		},
	}

	cmd.Flags().IntVar(&jobs, "jobs", 1000, "number of jobs to submit")
	cmd.Flags().IntVar(&workers, "workers", 8, "pool size")
	cmd.Flags().IntVar(&jobMillis, "job-ms", 1, "simulated job duration in milliseconds")
	return cmd
}

func runBench(jobs, workers int, jobDuration time.Duration) error {
	if jobs <= 0 {
		return fmt.Errorf("bench: jobs must be positive, got %d", jobs)
	}
	if workers <= 0 {
		return fmt.Errorf("bench: workers must be positive, got %d", workers)
	}

	p := pool.New(workers)
	defer p.Destroy()

	start := time.Now()
	for i := 0; i < jobs; i++ {
		if err := p.AddWork(func(any) { time.Sleep(jobDuration) }, nil); err != nil {
			return fmt.Errorf("bench: submission %d: %w", i, err)
		}
	}
	p.Wait()
	elapsed := time.Since(start)

	st := p.Stats()
	fmt.Printf("jobs=%d workers=%d elapsed=%s throughput=%.0f jobs/s\n",
		jobs, workers, elapsed.Round(time.Millisecond),
		float64(st.Completed)/elapsed.Seconds())
	return nil
}
