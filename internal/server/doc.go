// Package server is the presentation adapter: it maps the latest
// subscription snapshots to externally observable named values and serves
// them over HTTP (REST, Server-Sent Events, and Prometheus metrics).
//
// Entity states are projected from the store at observation time, so a
// consumer always sees the most recent refresh rather than a value
// captured when the entity was first listed.
//
// This package is internal to buswatch.
package server
