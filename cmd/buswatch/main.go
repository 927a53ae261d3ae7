// Package main is the entry point for the buswatch CLI.
//
// Buswatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	buswatch serve -c config.yaml    # Start tracking
//	buswatch validate -c config.yaml # Validate configuration
//	buswatch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "buswatch",
	Short: "School-bus status and delay tracker",
	Long: `Buswatch polls the school-bus cancellation status feed and the
per-route notification feed, and serves the latest per-field values over
a JSON API with live updates via Server-Sent Events.

Quick start:
  1. Create a config file (buswatch.yaml)
  2. Run: buswatch serve -c buswatch.yaml
  3. Read http://localhost:8080/api/entities

Example config:
  port: 8080
  refresh_interval: 5m
  subscriptions:
    - type: status
    - type: route
      route: "12"`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this buswatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("buswatch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
