// Package tracksim provides an in-memory simulation of the Hardware Tracker
// API for testing purposes.
//
// ## Purpose
//
// The tracksim package simulates the tracker's REST surface so test suites
// can exercise asset workflows without a live deployment. A Simulator holds
// one session at a time: Enable loads a JSON dataset into a fresh record
// store, Disable discards it. Several simulators can run side by side in one
// process, each with its own records, request log and API key.
//
// ## Endpoints
//
// The simulator serves the endpoints the tracker client uses:
//   - GET /assets.json - list and search assets (paginated)
//   - GET /assets/{id}.json - retrieve one asset
//   - POST /projects/{project}/assets.json - create an asset under a project
//   - PUT /assets/{id}.json - partial update
//   - DELETE /assets/{id}.json - delete
//   - GET /projects.json - list projects (paginated)
//
// Requests authenticate with an API key in the X-Tracker-API-Key header or
// the key query parameter; a session without a configured key accepts every
// request. Every accepted call lands in the session's request log in the
// order it was applied, including rejected authentication attempts. An
// optional artificial latency delays responses without holding any lock, so
// the log order never depends on it.
//
// ## Serving modes
//
// Use [Simulator.Start] to serve over TCP, or wire [Simulator.Transport]
// into an http.Client to answer calls in process; while the simulator is
// disabled the transport passes requests through to the real network.
//
// ## Integration with testscript
//
// The package provides a testscript command dispatcher, [TestScriptCmd],
// with the subcommands start, snapshot, log, clear-log, enable and disable.
// Scenarios are configured with TOML files that point at a dataset; see
// [Config] for the schema.
//
// The [Simulator.Snapshot] method returns a thread-safe, immutable view of
// the current state. Its TOML form is stable across runs, which makes it
// suitable for golden comparisons in scripts.
package tracksim
