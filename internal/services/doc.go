// Package services defines shared utilities consumed by the ingestion pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp city, run identifiers, trigger names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the API layer
//     tell "service unavailable" apart from "nothing found" and from storage
//     failures.
//
// Use these helpers when wiring new pipeline components so error handling and
// observability stay uniform.
package services
