package store

import (
	"time"

	"buswatch/internal/feed"
)

// Subscription kinds as stored in a [Snapshot].
const (
	KindStatus = "status"
	KindRoute  = "route"
)

// Snapshot is the latest result held for one subscription, optimized for
// JSON serialization (REST API and SSE).
//
// Exactly one of Status or Rows is populated, according to Kind. A
// snapshot is always written as a complete replacement: readers never
// observe a partially updated one. When a refresh fails, the previous
// data is carried forward with Available set to false and Error holding
// the cause.
type Snapshot struct {
	// ID is the owning subscription's identifier.
	ID string `json:"id"`

	// Name is the subscription's display name (e.g. "Cancelations",
	// "Bus 12").
	Name string `json:"name"`

	// Kind is KindStatus or KindRoute.
	Kind string `json:"kind"`

	// Route is the tracked route for KindRoute snapshots, empty otherwise.
	Route string `json:"route,omitempty"`

	// Status is the full status record for KindStatus snapshots.
	Status feed.StatusRecord `json:"status,omitempty"`

	// Rows is the latest projected row list for KindRoute snapshots.
	// Normally exactly one row; the placeholder row when nothing matched.
	Rows []feed.Row `json:"rows,omitempty"`

	// Available is false while the last refresh failed. The data fields
	// still hold the last good result.
	Available bool `json:"available"`

	// UpdatedAt is the time of the last successful refresh.
	UpdatedAt time.Time `json:"updated_at"`

	// Error is the message of the last failed refresh, empty when
	// Available.
	Error string `json:"error,omitempty"`
}

// Store defines the interface for holding and subscribing to snapshot
// updates.
//
// Implementations must be safe for concurrent access. The pub/sub
// mechanism pushes refresh results to connected clients (e.g. via
// Server-Sent Events).
type Store interface {
	// Update stores a snapshot, replacing any previous snapshot with the
	// same ID, and notifies all subscribers.
	Update(snap Snapshot)

	// Get returns the snapshot for a subscription ID, with ok reporting
	// whether one exists.
	Get(id string) (Snapshot, bool)

	// GetAll returns all currently stored snapshots, ordered by Name.
	// The returned slice is a copy; modifications do not affect the store.
	GetAll() []Snapshot

	// Subscribe returns a channel that receives snapshot updates.
	// The channel is buffered; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
