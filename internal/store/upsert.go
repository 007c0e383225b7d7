package store

import (
	"context"
	"database/sql"
	"fmt"

	"eventscout/internal/events"
	"eventscout/internal/services"
)

// hashLookupChunk bounds the IN list of the existing-hash lookup.
const hashLookupChunk = 500

// UpsertResult counts rows created and refreshed by Upsert.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

const upsertSQL = `INSERT INTO events (hash, title, type, city, venue, address, source_url, price_range, organizer, start_date, end_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
    type = excluded.type,
    address = excluded.address,
    source_url = excluded.source_url,
    price_range = excluded.price_range,
    organizer = excluded.organizer,
    end_date = excluded.end_date,
    updated_at = excluded.updated_at`

// Upsert writes a batch of events in one transaction. Duplicate hashes within
// the batch collapse to the last occurrence. Existing rows keep their ID,
// title, venue, city, start date and creation time; other fields are
// overwritten. An empty batch does not touch the database.
func (s *Store) Upsert(ctx context.Context, batch []events.Event) (UpsertResult, error) {
	unique := dedupeByHash(batch)
	if len(unique) == 0 {
		return UpsertResult{}, nil
	}
	ctx = ensureContext(ctx)

	var result UpsertResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.existingHashes(ctx, tx, unique)
		if err != nil {
			return fmt.Errorf("lookup existing hashes: %w", err)
		}
		stamp := formatTime(s.now())
		query := s.dialect.rebind(upsertSQL)
		for _, ev := range unique {
			if _, err := tx.ExecContext(ctx, query,
				ev.Hash,
				ev.Title,
				string(ev.Type),
				ev.City,
				nullable(ev.Venue),
				nullable(ev.Address),
				nullable(ev.SourceURL),
				nullable(ev.PriceRange),
				nullable(ev.Organizer),
				ev.StartDate,
				nullable(ev.EndDate),
				stamp,
				stamp,
			); err != nil {
				return fmt.Errorf("upsert %s: %w", ev.Hash, err)
			}
		}
		result = UpsertResult{Inserted: len(unique) - existing, Updated: existing}
		return nil
	})
	if err != nil {
		return UpsertResult{}, services.Wrap(services.ErrStorage, "store", "upsert", "Failed to upsert events", err)
	}
	return result, nil
}

func (s *Store) existingHashes(ctx context.Context, tx *sql.Tx, batch []events.Event) (int, error) {
	found := 0
	for start := 0; start < len(batch); start += hashLookupChunk {
		end := min(start+hashLookupChunk, len(batch))
		args := make([]any, 0, end-start)
		for _, ev := range batch[start:end] {
			args = append(args, ev.Hash)
		}
		query := s.dialect.rebind("SELECT COUNT(1) FROM events WHERE hash IN (" + makePlaceholders(len(args)) + ")")
		var count int
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return 0, err
		}
		found += count
	}
	return found, nil
}

// dedupeByHash keeps the first-seen order of hashes and the last-seen value
// for each.
func dedupeByHash(batch []events.Event) []events.Event {
	if len(batch) == 0 {
		return nil
	}
	index := make(map[string]int, len(batch))
	unique := make([]events.Event, 0, len(batch))
	for _, ev := range batch {
		if ev.Hash == "" {
			ev.Hash = events.Hash(ev.Title, ev.StartDate, ev.Venue, ev.City)
		}
		if pos, ok := index[ev.Hash]; ok {
			unique[pos] = ev
			continue
		}
		index[ev.Hash] = len(unique)
		unique = append(unique, ev)
	}
	return unique
}
