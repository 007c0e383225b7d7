// Package logging assembles structured slog loggers and formatting helpers used
// across eventscout.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code automatically tags log
// lines with the city, run identifier, trigger, and correlation ID. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
