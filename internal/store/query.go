package store

import (
	"context"
	"fmt"
	"strings"

	"eventscout/internal/events"
	"eventscout/internal/services"
)

// Query returns one page of events matching filter, ordered by start date
// ascending. An event matches a date range when its active interval
// [start_date, coalesce(end_date, start_date)] overlaps [From, To].
func (s *Store) Query(ctx context.Context, filter events.Filter) (events.Page, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return events.Page{}, err
	}
	ctx = ensureContext(ctx)

	where, args := buildWhere(filter)

	var total int
	countSQL := s.dialect.rebind("SELECT COUNT(1) FROM events" + where)
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return events.Page{}, services.Wrap(services.ErrStorage, "store", "query", "Failed to count events", err)
	}

	page := events.Page{Items: []events.Event{}, Total: total, Page: filter.Page, PageSize: filter.PageSize}
	if total == 0 || filter.Offset() >= total {
		return page, nil
	}

	listSQL := s.dialect.rebind("SELECT " + eventColumns + " FROM events" + where + " ORDER BY start_date ASC, id ASC LIMIT ? OFFSET ?")
	rows, err := s.db.QueryContext(ctx, listSQL, append(args, filter.PageSize, filter.Offset())...)
	if err != nil {
		return events.Page{}, services.Wrap(services.ErrStorage, "store", "query", "Failed to list events", err)
	}
	defer rows.Close()
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return events.Page{}, services.Wrap(services.ErrStorage, "store", "query", "Failed to scan event", err)
		}
		page.Items = append(page.Items, ev)
	}
	if err := rows.Err(); err != nil {
		return events.Page{}, services.Wrap(services.ErrStorage, "store", "query", "Failed to read events", err)
	}
	return page, nil
}

func buildWhere(filter events.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.City != "" {
		clauses = append(clauses, "city = ?")
		args = append(args, filter.City)
	}
	if filter.Query != "" {
		pattern := containsPattern(filter.Query)
		clauses = append(clauses, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(COALESCE(venue, '')) LIKE ? ESCAPE '\' OR LOWER(COALESCE(address, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if filter.From != "" {
		clauses = append(clauses, "COALESCE(end_date, start_date) >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		clauses = append(clauses, "start_date <= ?")
		args = append(args, filter.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// GetByIDs loads the events with the given IDs. Missing IDs are skipped; the
// result follows the order of ids.
func (s *Store) GetByIDs(ctx context.Context, ids []int64) ([]events.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := s.dialect.rebind("SELECT " + eventColumns + " FROM events WHERE id IN (" + makePlaceholders(len(ids)) + ")")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "get", "Failed to load events", err)
	}
	defer rows.Close()

	byID := make(map[int64]events.Event, len(ids))
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "store", "get", "Failed to scan event", err)
		}
		byID[ev.ID] = ev
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "get", "Failed to read events", err)
	}

	result := make([]events.Event, 0, len(byID))
	seen := make(map[int64]struct{}, len(byID))
	for _, id := range ids {
		ev, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, ev)
	}
	return result, nil
}

// GetByHash loads one event by its dedup hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (*events.Event, error) {
	query := s.dialect.rebind("SELECT " + eventColumns + " FROM events WHERE hash = ?")
	ev, err := scanEvent(s.db.QueryRowContext(ensureContext(ctx), query, hash))
	if err != nil {
		if isNoRows(err) {
			return nil, services.Wrap(services.ErrNotFound, "store", "get", fmt.Sprintf("No event with hash %s", hash), nil)
		}
		return nil, services.Wrap(services.ErrStorage, "store", "get", "Failed to load event", err)
	}
	return &ev, nil
}
