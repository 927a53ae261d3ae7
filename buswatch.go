package buswatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"buswatch/internal/feed"
	"buswatch/internal/refresh"
	"buswatch/internal/server"
	"buswatch/internal/store"
)

const defaultPort = 8080

// BusWatch is the main orchestrator: it refreshes each subscription's feed
// on its cadence, holds the latest results, and serves them over HTTP.
//
// The typical lifecycle is:
//
//	sub, _ := buswatch.NewRouteSubscription("12")
//	bw, err := buswatch.New(buswatch.WithSubscription(sub))
//	if err != nil {
//	    slog.Error("failed to create buswatch", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	bw.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type BusWatch struct {
	subscriptions   []Subscription
	port            int
	statusURL       string
	notificationURL string
	fetchTimeout    time.Duration
	logger          *slog.Logger
	registry        *prometheus.Registry
	updateCallbacks []func(Update)
}

// New creates a [BusWatch] instance with the given options.
//
// At least one subscription is required. At most one status subscription
// is allowed, and route subscriptions must not track duplicate routes
// (case-insensitive). Other options have sensible defaults: port 8080,
// upstream feed URLs, 10-second fetch timeout.
func New(opts ...Option) (*BusWatch, error) {
	cfg := &bwConfig{
		port:         defaultPort,
		fetchTimeout: feed.DefaultTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.subscriptions) == 0 {
		return nil, errors.New("at least one subscription is required")
	}

	statusSeen := false
	routesSeen := make(map[string]bool, len(cfg.subscriptions))
	for _, sub := range cfg.subscriptions {
		switch sub.Kind() {
		case KindStatus:
			if statusSeen {
				return nil, errors.New("at most one status subscription is allowed")
			}
			statusSeen = true
		case KindRoute:
			route := strings.ToLower(sub.Route())
			if routesSeen[route] {
				return nil, fmt.Errorf("duplicate route subscription: %q", sub.Route())
			}
			routesSeen[route] = true
		default:
			return nil, fmt.Errorf("unknown subscription kind %q", sub.Kind())
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &BusWatch{
		subscriptions:   cfg.subscriptions,
		port:            cfg.port,
		statusURL:       cfg.statusURL,
		notificationURL: cfg.notificationURL,
		fetchTimeout:    cfg.fetchTimeout,
		logger:          logger,
		registry:        cfg.registry,
		updateCallbacks: cfg.updateCallbacks,
	}, nil
}

// Start performs the mandatory first refresh of every subscription, then
// begins periodic refreshing and serves the HTTP API.
//
// Start is a blocking call that runs until the provided context is
// cancelled. If any subscription's first refresh fails, setup fails and
// Start returns the error without serving anything: a subscription that
// cannot fetch once at setup is reported as failed to the operator.
//
// Returns nil on graceful shutdown.
func (bw *BusWatch) Start(ctx context.Context) error {
	bw.logger.Info("buswatch starting", "subscription_count", len(bw.subscriptions))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	registry := bw.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	client := feed.NewClient(bw.statusURL, bw.notificationURL, bw.fetchTimeout, feed.NewMetrics(registry))
	snapshots := store.NewMemoryStore()

	coordinators := make([]*refresh.Coordinator, 0, len(bw.subscriptions))
	for _, sub := range bw.subscriptions {
		coordinators = append(coordinators, bw.newCoordinator(sub, client, snapshots))
	}

	// callback consumer goroutine; updates arrive via the store's pub/sub.
	// Subscribed before the first refresh so callbacks see it too.
	var wg sync.WaitGroup
	var updates <-chan store.Snapshot
	if len(bw.updateCallbacks) > 0 {
		updates = snapshots.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range updates {
				update := snapshotToUpdate(snap)
				for _, cb := range bw.updateCallbacks {
					invokeCallbackSafe(cb, update, bw.logger)
				}
			}
		}()
	}

	cleanup := func() {
		for _, coord := range coordinators {
			coord.Stop()
		}
		if updates != nil {
			snapshots.Unsubscribe(updates) // closes the channel
		}
		wg.Wait()
		client.Close()
	}

	// mandatory synchronous first refresh; nothing is served on failure
	for _, coord := range coordinators {
		if err := coord.FirstRefresh(ctx); err != nil {
			cleanup()
			return err
		}
		bw.logger.Info("subscription ready", "subscription", coord.Name())
	}

	for _, coord := range coordinators {
		coord.Start(ctx)
	}

	httpServer := server.NewServer(snapshots, bw.port, registry, bw.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	bw.logger.Info("api available", "url", fmt.Sprintf("http://localhost:%d", bw.port))

	<-ctx.Done()
	cleanup()
	bw.logger.Info("buswatch stopped")
	return nil
}

// newCoordinator wires one subscription's fetch/normalize/project pipeline
// into a refresh coordinator that owns its snapshot.
func (bw *BusWatch) newCoordinator(sub Subscription, client *feed.Client, st store.Store) *refresh.Coordinator {
	base := store.Snapshot{
		ID:    sub.ID(),
		Name:  sub.Name(),
		Kind:  string(sub.Kind()),
		Route: sub.Route(),
	}

	var update refresh.UpdateFunc
	if sub.Kind() == KindStatus {
		update = func(ctx context.Context) (store.Snapshot, error) {
			record, err := client.FetchStatus(ctx)
			if err != nil {
				return store.Snapshot{}, err
			}
			snap := base
			snap.Status = record
			return snap, nil
		}
	} else {
		route := sub.Route()
		update = func(ctx context.Context) (store.Snapshot, error) {
			raw, err := client.FetchNotifications(ctx, []string{route})
			if err != nil {
				return store.Snapshot{}, err
			}
			rows := feed.Project(feed.ExtractRows(raw), route)
			if len(rows) == 0 {
				// no matching notification: reset to the placeholder
				rows = []feed.Row{feed.PlaceholderRow(route)}
			}
			snap := base
			snap.Rows = rows
			return snap, nil
		}
	}

	return refresh.NewCoordinator(base, sub.cronSchedule(), update, st, bw.logger)
}

// Subscriptions returns a copy of the configured subscriptions.
func (bw *BusWatch) Subscriptions() []Subscription {
	cp := make([]Subscription, len(bw.subscriptions))
	copy(cp, bw.subscriptions)
	return cp
}

// Port returns the configured HTTP port for the API server.
func (bw *BusWatch) Port() int {
	return bw.port
}

// snapshotToUpdate converts an internal snapshot to the public callback
// type, with defensive copies of all mutable data.
func snapshotToUpdate(snap store.Snapshot) Update {
	update := Update{
		SubscriptionID: snap.ID,
		Name:           snap.Name,
		Kind:           Kind(snap.Kind),
		Route:          snap.Route,
		Available:      snap.Available,
		UpdatedAt:      snap.UpdatedAt,
		Err:            snap.Error,
	}

	if snap.Status != nil {
		record := make(StatusRecord, len(snap.Status))
		for key, entry := range snap.Status {
			cp := make(StatusEntry, len(entry))
			for k, v := range entry {
				cp[k] = v
			}
			record[key] = cp
		}
		update.Status = record
	}

	if snap.Rows != nil {
		rows := make([]NotificationRow, len(snap.Rows))
		for i, row := range snap.Rows {
			rows[i] = rowFromFeed(row)
		}
		update.Rows = rows
	}

	return update
}

// rowFromFeed copies an internal row into the public type, duplicating the
// pointer fields so callbacks cannot reach shared state.
func rowFromFeed(row feed.Row) NotificationRow {
	out := NotificationRow{
		Action:            row.Action,
		AffectsSchools:    row.AffectsSchools,
		Comment:           row.Comment,
		CreateTimeDisplay: row.CreateTimeDisplay,
		Operator:          row.Operator,
		TransferSchools:   row.TransferSchools,
		RouteRun:          row.RouteRun,
	}
	if row.CreateTime != nil {
		t := *row.CreateTime
		out.CreateTime = &t
	}
	if row.Delay != nil {
		d := *row.Delay
		out.Delay = &d
	}
	return out
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Update), update Update, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"panic", r,
				"subscription", update.Name,
			)
		}
	}()
	cb(update)
}
