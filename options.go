package buswatch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// bwConfig holds mutable state during BusWatch construction.
type bwConfig struct {
	subscriptions   []Subscription
	port            int
	statusURL       string
	notificationURL string
	fetchTimeout    time.Duration
	logger          *slog.Logger
	registry        *prometheus.Registry
	updateCallbacks []func(Update)
}

// Option configures a [BusWatch] instance during construction.
//
// Option implements the functional options pattern; options return an
// error if validation fails.
//
// Built-in options: [WithSubscription], [WithSubscriptions], [WithPort],
// [WithStatusFeedURL], [WithNotificationFeedURL], [WithFetchTimeout],
// [WithLogger], [WithMetricsRegistry], [WithUpdateCallback].
type Option func(*bwConfig) error

// WithSubscription adds a single [Subscription].
//
// Can be called multiple times. At least one subscription must be
// configured for [New] to succeed, and at most one of them may be the
// status subscription.
func WithSubscription(s Subscription) Option {
	return func(cfg *bwConfig) error {
		cfg.subscriptions = append(cfg.subscriptions, s)
		return nil
	}
}

// WithSubscriptions adds multiple [Subscription] values at once.
// Equivalent to calling [WithSubscription] for each.
func WithSubscriptions(subs ...Subscription) Option {
	return func(cfg *bwConfig) error {
		cfg.subscriptions = append(cfg.subscriptions, subs...)
		return nil
	}
}

// WithPort sets the HTTP port for the API server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *bwConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithStatusFeedURL overrides the status feed URL. Useful for testing or
// for districts running the same backend elsewhere.
//
// Returns an error if the URL is invalid or has no http/https scheme.
func WithStatusFeedURL(rawURL string) Option {
	return func(cfg *bwConfig) error {
		if err := validateFeedURL(rawURL); err != nil {
			return fmt.Errorf("status feed url: %w", err)
		}
		cfg.statusURL = rawURL
		return nil
	}
}

// WithNotificationFeedURL overrides the notification feed URL.
//
// Returns an error if the URL is invalid or has no http/https scheme.
func WithNotificationFeedURL(rawURL string) Option {
	return func(cfg *bwConfig) error {
		if err := validateFeedURL(rawURL); err != nil {
			return fmt.Errorf("notification feed url: %w", err)
		}
		cfg.notificationURL = rawURL
		return nil
	}
}

// WithFetchTimeout sets the per-request timeout for both feeds.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *bwConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified,
// [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *bwConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithMetricsRegistry sets the Prometheus registry used for the feed
// instruments and served at /metrics. If not specified, a fresh registry
// with the Go runtime and process collectors is created.
//
// Returns an error if the registry is nil.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(cfg *bwConfig) error {
		if registry == nil {
			return errors.New("registry cannot be nil")
		}
		cfg.registry = registry
		return nil
	}
}

// WithUpdateCallback registers a function to be called after every
// refresh, successful or not.
//
// Multiple callbacks may be registered; they execute in registration
// order. Callbacks must be non-blocking: they are invoked synchronously
// from a single goroutine, so a long-running callback delays delivery of
// subsequent updates. Panics within callbacks are recovered and logged.
//
// Example:
//
//	bw, err := buswatch.New(
//	    buswatch.WithSubscription(sub),
//	    buswatch.WithUpdateCallback(func(u buswatch.Update) {
//	        if !u.Available {
//	            log.Printf("%s unavailable: %s", u.Name, u.Err)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(Update)) Option {
	return func(cfg *bwConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}

func validateFeedURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must have an http or https scheme, got %q", parsed.Scheme)
	}
	return nil
}
