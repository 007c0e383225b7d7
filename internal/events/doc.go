// Package events defines the event data model shared by ingestion, storage,
// and the query API.
//
// Candidate is a record accepted by Validate: title required, type exactly
// "expo" or "concert", start_date in strict YYYY-MM-DD form, optional
// end_date not before start_date, optional source_url that parses as an
// absolute URL, and free-text optional fields stored as nil when unknown. Text
// is NFC-normalized so the same listing written with different Unicode
// compositions hashes to one identity.
//
// Hash derives the dedup key from (title, start_date, venue, city). Filter
// and Page describe query requests and results.
package events
