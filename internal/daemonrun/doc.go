// Package daemonrun assembles the eventscout runtime from configuration:
// logger, store, LLM clients, orchestrator, and daemon. Both the eventscoutd
// binary and "eventscout serve" call Run; the CLI ingestion commands reuse
// NewComponents.
package daemonrun
