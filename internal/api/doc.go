// Package api defines the wire-format types and service layer behind the HTTP
// API and the CLI. It translates stored events into transport-friendly DTOs
// so consumers never couple to internal types.
//
// # Key Types
//
// Event: transport representation of a stored listing.
//
// EventPage: one page of query results with total and page count.
//
// SyncRequest/SyncResponse: trigger one ingestion pass for a city and report
// inserted and updated counts, or a message when nothing survived.
//
// VerifyRequest/VerifyResponse: re-run verification against stored fields
// without mutating rows.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Optional event fields are null when unknown.
// Timestamps use RFC3339 with milliseconds. Service methods return errors
// classified by the services sentinels so the HTTP layer can map them to
// status codes with services.HTTPStatus.
package api
