package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"buswatch/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a buswatch configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields, including cron schedules. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  buswatch validate -c config.yaml
  buswatch validate --config /etc/buswatch/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// also exercise the SDK-side constructors so route and schedule
	// problems surface here instead of at serve time
	if _, err := config.BuildSubscriptions(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	statusCount := 0
	routeCount := 0
	for _, sub := range cfg.Subscriptions {
		if sub.Type == "status" {
			statusCount++
		} else {
			routeCount++
		}
	}

	fmt.Printf("Config is valid\n")
	fmt.Printf("  status subscriptions: %d\n", statusCount)
	fmt.Printf("  route subscriptions:  %d\n", routeCount)
	fmt.Printf("  port:                 %d\n", cfg.Port)
	fmt.Printf("  refresh interval:     %s\n", cfg.RefreshInterval.Duration())
	return nil
}
