// Package daemon coordinates the long-running eventscout process.
//
// It wires configuration, the event store, the ingestion orchestrator, the
// daily scheduler, and the HTTP API into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon owns health reporting and
// exposes Prometheus metrics next to the JSON API.
//
// Keep orchestration logic here: ingestion steps live in their respective
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
