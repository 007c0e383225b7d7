// Package store persists events in SQLite or PostgreSQL and answers the
// list queries behind the HTTP API.
//
// Events are keyed by their dedup hash. Upsert is set-based: a batch is
// deduplicated by hash, the hashes already present are looked up inside the
// same transaction, and every row is written with INSERT ... ON CONFLICT(hash)
// DO UPDATE so re-ingesting a listing refreshes its mutable fields without
// changing its ID or creation time. The returned counts distinguish inserts
// from updates.
//
// Schema changes ship as embedded per-dialect migrations under migrations/.
// Queries are written with ? placeholders and rebound for PostgreSQL.
package store
