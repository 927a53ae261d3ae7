// Package config provides YAML configuration parsing for buswatch.
//
// This package enables running buswatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	refresh_interval: 5m
//
//	subscriptions:
//	  - type: status
//	  - type: route
//	    route: "12"
//	  - type: route
//	    route: "7"
//	    schedule: "*/5 7-9,14-16 * * 1-5"
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// minRefreshInterval prevents accidental DoS of the upstream feeds with
// overly aggressive polling.
const minRefreshInterval = 1 * time.Second

// Config is the root configuration structure for buswatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port" validate:"omitempty,min=1,max=65535"`

	// RefreshInterval is the default time between refreshes for
	// subscriptions that set no interval of their own.
	// Accepts duration strings like "5m", "300s". Defaults to 5m.
	RefreshInterval Duration `yaml:"refresh_interval"`

	// StatusFeedURL overrides the status feed URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	StatusFeedURL string `yaml:"status_feed_url"`

	// NotificationFeedURL overrides the notification feed URL.
	// Supports environment variable substitution.
	NotificationFeedURL string `yaml:"notification_feed_url"`

	// FetchTimeout is the per-request timeout for both feeds.
	// Defaults to 10s.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// Subscriptions defines what to track.
	Subscriptions []SubscriptionConfig `yaml:"subscriptions" validate:"required,min=1,dive"`
}

// SubscriptionConfig defines a single tracking unit.
type SubscriptionConfig struct {
	// Type is "status" (the cancellation feed, at most once) or "route".
	Type string `yaml:"type" validate:"required,oneof=status route"`

	// Route is the tracked bus route. Required for type "route".
	Route string `yaml:"route"`

	// Interval is the refresh interval for this subscription.
	// If not specified, uses the global refresh_interval.
	// Must be between 1s and 24h.
	Interval Duration `yaml:"interval"`

	// Schedule is an optional cron expression replacing the fixed
	// interval, e.g. "*/5 7-9 * * 1-5" or "@every 2m".
	Schedule string `yaml:"schedule"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the feed URLs, defaults are
// applied for Port (8080) and RefreshInterval (5m), and the result is
// validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = Duration(5 * time.Minute)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the
// config: struct-level rules via validator tags, then the checks tags
// cannot express.
func (c *Config) expandAndValidate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.RefreshInterval.Duration() < minRefreshInterval {
		return fmt.Errorf("refresh_interval must be at least %s, got %s", minRefreshInterval, c.RefreshInterval.Duration())
	}
	if c.FetchTimeout != 0 && c.FetchTimeout.Duration() < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative, got %s", c.FetchTimeout.Duration())
	}

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"status_feed_url", &c.StatusFeedURL},
		{"notification_feed_url", &c.NotificationFeedURL},
	} {
		if *field.value == "" {
			continue
		}
		expanded, err := expandEnvVars(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		parsed, err := url.Parse(expanded)
		if err != nil {
			return fmt.Errorf("%s: invalid url: %w", field.name, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s: url scheme must be http or https, got %q", field.name, parsed.Scheme)
		}
		*field.value = expanded
	}

	statusCount := 0
	routesSeen := make(map[string]bool, len(c.Subscriptions))
	for i := range c.Subscriptions {
		sub := &c.Subscriptions[i]

		switch sub.Type {
		case "status":
			statusCount++
			if statusCount > 1 {
				return fmt.Errorf("subscriptions[%d]: only one status subscription is allowed", i)
			}
			if sub.Route != "" {
				return fmt.Errorf("subscriptions[%d]: route is not valid for a status subscription", i)
			}
		case "route":
			route := strings.TrimSpace(sub.Route)
			if route == "" {
				return fmt.Errorf("subscriptions[%d]: route is required for a route subscription", i)
			}
			if routesSeen[strings.ToLower(route)] {
				return fmt.Errorf("subscriptions[%d]: duplicate route %q", i, route)
			}
			routesSeen[strings.ToLower(route)] = true
			sub.Route = route
		}

		if sub.Interval != 0 {
			if sub.Interval.Duration() < time.Second {
				return fmt.Errorf("subscriptions[%d]: interval must be at least 1s, got %s", i, sub.Interval.Duration())
			}
			if sub.Interval.Duration() > 24*time.Hour {
				return fmt.Errorf("subscriptions[%d]: interval must not exceed 24h, got %s", i, sub.Interval.Duration())
			}
		}

		if sub.Schedule != "" {
			if _, err := cron.ParseStandard(sub.Schedule); err != nil {
				return fmt.Errorf("subscriptions[%d]: invalid schedule %q: %w", i, sub.Schedule, err)
			}
		}
	}

	return nil
}
