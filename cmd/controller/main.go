package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (injected at build time)
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// logPretty switches every subcommand's logger from structured JSON
// (production) to human-readable development output. A persistent flag
// rather than a per-subcommand one so `server`, `helper`, and `hostsync`
// all pick it up without repeating the flag definition three times.
var logPretty bool

var rootCmd = &cobra.Command{
	Use:   "saltbox-docker-controller",
	Short: "Saltbox Docker Container Orchestrator",
	Long: `A dependency-aware Docker container orchestrator for Saltbox.
Manages container startup/shutdown order based on dependency labels.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false,
		"Use human-readable development logging instead of structured JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
