// Package ingestion runs the event pipeline for one city: fetch candidates
// from the primary model for each target date, validate them, fact-check the
// survivors with the verification model, and upsert the verified events.
//
// Both model credentials must be present before any work starts; otherwise
// Run and Sync return services.ErrUnavailable. Dates are processed one after
// another and isolated from each other. Verification fans out over a bounded
// worker pool (one worker by default). A per-city lock makes a second
// concurrent run for the same city fail fast with ErrRunInProgress.
package ingestion
