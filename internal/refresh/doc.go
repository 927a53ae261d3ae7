// Package refresh provides the per-subscription periodic refresh
// coordinator.
//
// A [Coordinator] owns one subscription's snapshot exclusively: it runs
// the fetch-and-reshape pipeline on a schedule, publishes full snapshot
// replacements to the store, and marks the subscription unavailable while
// refreshes fail (keeping the last good data). The first refresh is
// synchronous and mandatory, mirroring subscription setup semantics.
//
// This package is internal to buswatch.
package refresh
