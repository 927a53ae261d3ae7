// Package feed talks to the two upstream bus endpoints and reshapes what
// they return.
//
// The main components are:
//
//   - [Client]: HTTP access to the status feed (GET) and the notification
//     feed (POST), with a fixed per-request timeout
//   - [ExtractRows]: flattens the notification payload's varying envelope
//     shapes into a list of row mappings
//   - [Project]: filters rows to one tracked route and the allow-listed
//     field set, deriving the delay and parsing the creation time
//   - [Metrics]: Prometheus instruments for fetch latency, volume, and
//     failures
//
// Only [Client] can fail, and only with a [FetchError]. Normalization and
// projection degrade silently: unrecognized envelopes become empty row
// lists and unparseable fields stay absent, so a malformed upstream
// payload can never crash a refresh.
//
// This package is internal to buswatch; configuration happens through the
// main buswatch package.
package feed
