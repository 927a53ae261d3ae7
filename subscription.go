package buswatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// DefaultRefreshInterval is the default time between refreshes of a
// subscription's feed.
const DefaultRefreshInterval = 5 * time.Minute

// Subscription is one operator-configured tracking unit: either the single
// cancellation status feed, or one tracked bus route on the notification
// feed.
//
// Subscription is immutable after creation via [NewStatusSubscription] or
// [NewRouteSubscription] and carries its own refresh cadence. Each
// subscription gets its own refresh coordinator; the status kind is
// limited to one subscription per BusWatch instance.
type Subscription struct {
	id       string
	kind     Kind
	route    string
	interval time.Duration
	schedule cron.Schedule
	rawSched string
}

// NewStatusSubscription creates the cancellation status subscription.
//
// At most one status subscription may be registered on a BusWatch
// instance; [New] enforces this.
func NewStatusSubscription(opts ...SubscriptionOption) (Subscription, error) {
	return newSubscription(KindStatus, "", opts)
}

// NewRouteSubscription creates a subscription tracking a single bus route
// on the notification feed.
//
// The route is matched against the feed's RouteRun field with trimmed,
// case-insensitive comparison; leading and trailing whitespace in the
// argument is removed here. Returns an error if the route is empty.
func NewRouteSubscription(route string, opts ...SubscriptionOption) (Subscription, error) {
	route = strings.TrimSpace(route)
	if route == "" {
		return Subscription{}, errors.New("route cannot be empty")
	}
	return newSubscription(KindRoute, route, opts)
}

func newSubscription(kind Kind, route string, opts []SubscriptionOption) (Subscription, error) {
	cfg := &subscriptionConfig{
		interval: DefaultRefreshInterval,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Subscription{}, err
		}
	}

	return Subscription{
		id:       uuid.NewString(),
		kind:     kind,
		route:    route,
		interval: cfg.interval,
		schedule: cfg.schedule,
		rawSched: cfg.rawSched,
	}, nil
}

// ID returns the subscription's generated unique identifier.
func (s Subscription) ID() string {
	return s.id
}

// Kind returns the subscription kind.
func (s Subscription) Kind() Kind {
	return s.kind
}

// Route returns the tracked route for [KindRoute] subscriptions, or empty
// string for the status subscription.
func (s Subscription) Route() string {
	return s.route
}

// Interval returns the refresh interval. It is ignored when a cron
// schedule was set via [WithSchedule].
func (s Subscription) Interval() time.Duration {
	return s.interval
}

// Schedule returns the cron expression set via [WithSchedule], or empty
// string when the subscription refreshes on a fixed interval.
func (s Subscription) Schedule() string {
	return s.rawSched
}

// Name returns the subscription's display name: "Cancelations" for the
// status subscription, "Bus <route>" for a route subscription.
func (s Subscription) Name() string {
	if s.kind == KindStatus {
		return "Cancelations"
	}
	return fmt.Sprintf("Bus %s", s.route)
}

// cronSchedule returns the cadence driving this subscription's refresh
// loop: the configured cron schedule, or a constant delay at the interval.
func (s Subscription) cronSchedule() cron.Schedule {
	if s.schedule != nil {
		return s.schedule
	}
	return cron.Every(s.interval)
}

// subscriptionConfig holds mutable state during subscription construction.
type subscriptionConfig struct {
	interval time.Duration
	schedule cron.Schedule
	rawSched string
}

// SubscriptionOption configures a [Subscription] during construction.
//
// SubscriptionOption implements the functional options pattern; options
// return an error if validation fails.
//
// Built-in options: [WithInterval], [WithSchedule].
type SubscriptionOption func(*subscriptionConfig) error

// WithInterval sets the refresh interval for this subscription.
//
// Defaults to [DefaultRefreshInterval] (5 minutes). The interval must be
// at least 1 second and at most 24 hours.
//
// Note: the interval is measured between refresh starts; a slow fetch
// extends the effective interval by its own duration.
func WithInterval(d time.Duration) SubscriptionOption {
	return func(cfg *subscriptionConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > 24*time.Hour {
			return errors.New("interval must not exceed 24 hours")
		}
		cfg.interval = d
		return nil
	}
}

// WithSchedule sets a cron expression for this subscription's refresh
// cadence, replacing the fixed interval.
//
// The expression uses the standard 5-field cron format, plus descriptors
// such as "@every 5m" or "@hourly". This allows confining polling to the
// windows that matter, e.g. school-run hours on weekdays:
//
//	sub, err := buswatch.NewRouteSubscription("12",
//	    buswatch.WithSchedule("*/5 7-9,14-16 * * 1-5"),
//	)
//
// Returns an error if the expression does not parse.
func WithSchedule(expr string) SubscriptionOption {
	return func(cfg *subscriptionConfig) error {
		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		cfg.schedule = schedule
		cfg.rawSched = expr
		return nil
	}
}
