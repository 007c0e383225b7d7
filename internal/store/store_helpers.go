package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"eventscout/internal/events"
)

const eventColumns = "id, hash, title, type, city, venue, address, source_url, price_range, organizer, start_date, end_date, created_at, updated_at"

func scanEvent(scanner interface{ Scan(dest ...any) error }) (events.Event, error) {
	var (
		ev         events.Event
		eventType  string
		venue      sql.NullString
		address    sql.NullString
		sourceURL  sql.NullString
		priceRange sql.NullString
		organizer  sql.NullString
		endDate    sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&ev.ID,
		&ev.Hash,
		&ev.Title,
		&eventType,
		&ev.City,
		&venue,
		&address,
		&sourceURL,
		&priceRange,
		&organizer,
		&ev.StartDate,
		&endDate,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return events.Event{}, err
	}
	ev.Type = events.Type(eventType)
	ev.Venue = nullString(venue)
	ev.Address = nullString(address)
	ev.SourceURL = nullString(sourceURL)
	ev.PriceRange = nullString(priceRange)
	ev.Organizer = nullString(organizer)
	ev.EndDate = nullString(endDate)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		ev.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		ev.UpdatedAt = updated
	}
	return ev, nil
}

func nullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func nullable(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive LIKE pattern matching value
// anywhere in a column.
func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(value)) + "%"
}
