// ============================================================================
// TaskForge - Main Entry Point
// ============================================================================
//
// File: cmd/taskforge/main.go
// Purpose: Application entry point and CLI initialization
//
// Version Injection:
//   Variables injected at build time via -ldflags:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./taskforge --help               # Show help
//   ./taskforge run                  # Run a pool under synthetic load
//   ./taskforge bench --jobs 10000   # Batch benchmark
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/taskforge/taskforge/internal/cli"
)

// Build-time version injection via ldflags
var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
