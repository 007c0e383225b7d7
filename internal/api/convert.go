package api

import (
	"time"

	"eventscout/internal/events"
	"eventscout/internal/store"
)

// FromEvent converts a stored event into its API representation.
func FromEvent(ev events.Event) Event {
	return Event{
		ID:         ev.ID,
		Title:      ev.Title,
		Type:       string(ev.Type),
		City:       ev.City,
		Venue:      ev.Venue,
		Address:    ev.Address,
		SourceURL:  ev.SourceURL,
		PriceRange: ev.PriceRange,
		Organizer:  ev.Organizer,
		StartDate:  ev.StartDate,
		EndDate:    ev.EndDate,
		CreatedAt:  formatTimestamp(ev.CreatedAt),
		UpdatedAt:  formatTimestamp(ev.UpdatedAt),
	}
}

// FromEvents converts a slice of stored events, never returning nil.
func FromEvents(list []events.Event) []Event {
	out := make([]Event, 0, len(list))
	for _, ev := range list {
		out = append(out, FromEvent(ev))
	}
	return out
}

// FromPage converts a query page.
func FromPage(page events.Page) EventPage {
	return EventPage{
		Items:      FromEvents(page.Items),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages(),
	}
}

// FromStats converts store statistics.
func FromStats(stats store.Stats) StoreStats {
	return StoreStats{Total: stats.Total, ByType: stats.ByType, ByCity: stats.ByCity}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
