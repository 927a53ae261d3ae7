package config

import (
	"fmt"

	"buswatch"
)

// BuildSubscriptions converts a parsed [Config] into SDK subscriptions.
//
// Subscriptions with no interval of their own inherit the config's global
// refresh_interval; a cron schedule takes precedence over both.
func BuildSubscriptions(cfg *Config) ([]buswatch.Subscription, error) {
	subs := make([]buswatch.Subscription, 0, len(cfg.Subscriptions))

	for i, sc := range cfg.Subscriptions {
		var opts []buswatch.SubscriptionOption

		interval := sc.Interval
		if interval == 0 {
			interval = cfg.RefreshInterval
		}
		opts = append(opts, buswatch.WithInterval(interval.Duration()))

		if sc.Schedule != "" {
			opts = append(opts, buswatch.WithSchedule(sc.Schedule))
		}

		var (
			sub buswatch.Subscription
			err error
		)
		switch sc.Type {
		case "status":
			sub, err = buswatch.NewStatusSubscription(opts...)
		case "route":
			sub, err = buswatch.NewRouteSubscription(sc.Route, opts...)
		default:
			err = fmt.Errorf("unknown type %q", sc.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("subscriptions[%d]: %w", i, err)
		}

		subs = append(subs, sub)
	}

	return subs, nil
}

// BuildOptions converts a parsed [Config] into SDK options, including the
// built subscriptions.
func BuildOptions(cfg *Config) ([]buswatch.Option, error) {
	subs, err := BuildSubscriptions(cfg)
	if err != nil {
		return nil, err
	}

	opts := []buswatch.Option{
		buswatch.WithSubscriptions(subs...),
		buswatch.WithPort(cfg.Port),
	}
	if cfg.StatusFeedURL != "" {
		opts = append(opts, buswatch.WithStatusFeedURL(cfg.StatusFeedURL))
	}
	if cfg.NotificationFeedURL != "" {
		opts = append(opts, buswatch.WithNotificationFeedURL(cfg.NotificationFeedURL))
	}
	if cfg.FetchTimeout != 0 {
		opts = append(opts, buswatch.WithFetchTimeout(cfg.FetchTimeout.Duration()))
	}

	return opts, nil
}
