// Package main hosts the eventscout CLI entrypoint and command graph.
//
// The Cobra-based command tree runs ingestion, queries, verification, and
// maintenance directly against the configured store, scaffolds and inspects
// configuration, reports readiness, and can run the daemon in the foreground.
// It centralizes configuration resolution and logging setup so subcommands can
// focus on output instead of wiring.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it through dedicated commands or flags here.
package main
