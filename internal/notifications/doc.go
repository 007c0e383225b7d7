// Package notifications reports scheduled ingestion results through ntfy.
//
// NewService returns a no-op notifier when no topic is configured, so callers
// never need to check whether delivery is enabled. Failures are always sent;
// successful runs are sent only when notifications.on_success is set.
package notifications
