package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventscout/internal/events"
	"eventscout/internal/services"
)

// Stats summarizes stored events.
type Stats struct {
	Total  int            `json:"total" yaml:"total"`
	ByType map[string]int `json:"byType" yaml:"by_type"`
	ByCity map[string]int `json:"byCity" yaml:"by_city"`
}

// Stats counts events grouped by type and by city.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{ByType: map[string]int{}, ByCity: map[string]int{}}
	if err := s.groupCounts(ctx, "type", stats.ByType); err != nil {
		return Stats{}, err
	}
	if err := s.groupCounts(ctx, "city", stats.ByCity); err != nil {
		return Stats{}, err
	}
	for _, count := range stats.ByType {
		stats.Total += count
	}
	return stats, nil
}

func (s *Store) groupCounts(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, COUNT(1) FROM events GROUP BY %s", column, column))
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "stats", "Failed to count events by "+column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return services.Wrap(services.ErrStorage, "store", "stats", "Failed to scan counts", err)
		}
		into[key] = count
	}
	return rows.Err()
}

// Prune deletes events whose active interval ended before the given date.
func (s *Store) Prune(ctx context.Context, before string) (int64, error) {
	if !events.IsDate(before) {
		return 0, services.Wrap(services.ErrValidation, "store", "prune", fmt.Sprintf("before must match YYYY-MM-DD, got %q", before), nil)
	}
	res, err := s.execWithRetry(ctx, "DELETE FROM events WHERE COALESCE(end_date, start_date) < ?", before)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "store", "prune", "Failed to prune events", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "store", "prune", "Failed to count pruned events", err)
	}
	return removed, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
