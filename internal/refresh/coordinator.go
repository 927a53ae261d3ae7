package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"buswatch/internal/store"
)

// UpdateFunc runs one refresh for a subscription: fetch, reshape, and
// return the complete replacement snapshot. The identity fields (ID, Name,
// Kind, Route) must be filled in; the coordinator owns Available,
// UpdatedAt, and Error.
type UpdateFunc func(ctx context.Context) (store.Snapshot, error)

// Coordinator runs the periodic refresh for a single subscription and owns
// its snapshot in the store.
//
// Each subscription gets its own coordinator, so there is no locking
// around the data itself: one goroutine performs a refresh, publishes a
// full replacement snapshot, then sleeps until the schedule's next
// activation. Ticks never overlap. On a failed refresh the previous data
// is republished with Available set to false; the fixed cadence is the
// only retry policy.
//
// The mandatory first refresh is synchronous via [Coordinator.FirstRefresh]
// and must succeed before [Coordinator.Start] is useful; a failing first
// refresh fails setup.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Coordinator struct {
	base     store.Snapshot
	schedule cron.Schedule
	update   UpdateFunc
	store    store.Store
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	// last successful snapshot, accessed only from the refresh goroutine
	// (and FirstRefresh, which completes before Start).
	last    store.Snapshot
	hasLast bool
}

// NewCoordinator creates a refresh [Coordinator].
//
// base carries the subscription's identity fields and is republished (with
// Available false) if a refresh fails before any success. schedule decides
// the tick cadence; use cron.Every for a fixed interval.
func NewCoordinator(base store.Snapshot, schedule cron.Schedule, update UpdateFunc, st store.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		base:     base,
		schedule: schedule,
		update:   update,
		store:    st,
		logger:   logger,
	}
}

// Name returns the subscription display name this coordinator refreshes.
func (c *Coordinator) Name() string {
	return c.base.Name
}

// FirstRefresh performs the mandatory synchronous refresh at subscription
// setup. Unlike periodic ticks, a failure here propagates to the caller so
// setup itself can be reported as failed.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	snap, err := c.refresh(ctx)
	if err != nil {
		return fmt.Errorf("first refresh for %q: %w", c.base.Name, err)
	}
	c.publishSuccess(snap)
	return nil
}

// Start begins the periodic refresh loop in a background goroutine.
//
// Start is non-blocking and idempotent; it is a no-op after Stop. The loop
// waits for the schedule's next activation, refreshes, publishes, and
// repeats until the context is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	runCtx := c.ctx // capture under lock to avoid race
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		for {
			now := time.Now()
			timer := time.NewTimer(c.schedule.Next(now).Sub(now))

			select {
			case <-runCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				c.tick(runCtx)
			}
		}
	}()
}

// Stop halts the refresh loop and waits for any in-flight refresh to
// complete. Idempotent; safe to call before Start.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		if c.cancel != nil {
			c.cancel()
		}
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// tick runs one periodic refresh. Failures keep the prior data and mark
// the snapshot unavailable until a later tick succeeds.
func (c *Coordinator) tick(ctx context.Context) {
	snap, err := c.refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down, not an upstream failure
			return
		}
		c.logger.Warn("refresh failed",
			"subscription", c.base.Name,
			"error", err.Error(),
		)
		c.publishFailure(err)
		return
	}

	c.publishSuccess(snap)
	c.logger.Debug("refresh completed",
		"subscription", c.base.Name,
		"kind", c.base.Kind,
	)
}

// refresh calls the update func with panic recovery. A panicking update is
// reported as a refresh failure carrying a correlation ID; the full stack
// is logged server-side.
func (c *Coordinator) refresh(ctx context.Context) (snap store.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			c.logger.Error("refresh panic",
				"subscription", c.base.Name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("refresh panic (correlation_id: %s)", correlationID)
		}
	}()
	return c.update(ctx)
}

// publishSuccess replaces the held snapshot wholesale.
func (c *Coordinator) publishSuccess(snap store.Snapshot) {
	snap.Available = true
	snap.UpdatedAt = time.Now()
	snap.Error = ""

	c.last = snap
	c.hasLast = true
	c.store.Update(snap)
}

// publishFailure republishes the last good data marked unavailable. If no
// refresh ever succeeded, the bare identity snapshot is published instead.
func (c *Coordinator) publishFailure(err error) {
	snap := c.base
	if c.hasLast {
		snap = c.last
	}
	snap.Available = false
	snap.Error = err.Error()
	c.store.Update(snap)
}
