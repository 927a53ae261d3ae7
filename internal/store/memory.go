package store

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe
// mechanism for real-time updates. Snapshots are keyed by subscription ID,
// with new snapshots replacing previous values wholesale.
//
// Subscribers receive updates via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber to prevent blocking the refresh
// path.
type MemoryStore struct {
	mu          sync.RWMutex
	snapshots   map[string]Snapshot
	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:   make(map[string]Snapshot),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Update stores a [Snapshot] and notifies all subscribers.
//
// The snapshot replaces any previous value with the same ID. Readers that
// call Get or GetAll afterwards observe only the full new value.
func (m *MemoryStore) Update(snap Snapshot) {
	m.mu.Lock()
	m.snapshots[snap.ID] = snap
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// Get returns the snapshot for a subscription ID.
func (m *MemoryStore) Get(id string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[id]
	return snap, ok
}

// GetAll returns a copy of all stored snapshots, sorted by Name for a
// stable presentation order.
func (m *MemoryStore) GetAll() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// Subscribe creates a new subscription and returns a channel for
// receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers without
// blocking: a full buffer drops the message for that subscriber.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the message
		}
	}
}
