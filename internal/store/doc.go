// Package store holds the latest per-subscription snapshots and fans out
// updates.
//
// Each refresh coordinator owns exactly one snapshot and publishes full
// replacements; the store never merges fields across refreshes. The
// publish-subscribe side feeds real-time consumers (the SSE endpoint and
// SDK callbacks) with non-blocking sends, so a slow consumer misses
// updates rather than stalling refreshes.
//
// This package is internal to buswatch.
package store
