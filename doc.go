// Package buswatch polls the Simcoe County school-bus status and
// notification feeds and exposes the latest per-field state over HTTP.
//
// BusWatch is designed as an SDK-first library: subscriptions and the
// instance itself are configured programmatically via the functional
// options pattern, with immutable types and per-subscription refresh
// coordinators.
//
// # Quick Start
//
// Track one bus route and the cancellation status feed:
//
//	status, _ := buswatch.NewStatusSubscription()
//	bus12, _ := buswatch.NewRouteSubscription("12")
//	bw, _ := buswatch.New(buswatch.WithSubscriptions(status, bus12))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	bw.Start(ctx) // blocks until context is cancelled
//
// # Subscriptions
//
// A [Subscription] is one tracking unit. The status subscription (at most
// one per instance) polls the cancellation JSON feed; a route subscription
// polls the notification endpoint for a single bus route. Each
// subscription refreshes independently on a fixed interval (default 5
// minutes) or a cron schedule:
//
//	sub, err := buswatch.NewRouteSubscription("12",
//	    buswatch.WithInterval(2 * time.Minute),
//	)
//
//	morningOnly, err := buswatch.NewRouteSubscription("7",
//	    buswatch.WithSchedule("*/5 7-9 * * 1-5"),
//	)
//
// The first refresh of every subscription happens synchronously inside
// [BusWatch.Start] and must succeed; a feed that cannot be fetched once at
// setup fails the whole start. Later failures keep the last good data and
// mark the subscription unavailable until a refresh succeeds again.
//
// # Architecture
//
// BusWatch consists of several internal packages (under internal/):
//
//   - internal/feed: HTTP access to both feeds, envelope normalization,
//     and field projection
//   - internal/refresh: per-subscription periodic refresh coordinators
//   - internal/store: latest-snapshot storage with pub/sub
//   - internal/server: HTTP presentation (REST API, Server-Sent Events,
//     Prometheus metrics)
//
// The internal packages are not part of the public API and may change
// without notice.
package buswatch
