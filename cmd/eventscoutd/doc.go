// Command eventscoutd runs the eventscout daemon: the daily ingestion
// scheduler and the HTTP API on paths.api_bind.
package main
