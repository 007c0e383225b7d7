package discovery

import (
	"fmt"
	"time"
)

// SystemPrompt fixes the output contract for event discovery.
const SystemPrompt = `You are a local events researcher. You list real, publicly announced expos and concerts.

Rules:
- Only include events you have concrete knowledge of. Never invent events.
- "type" must be exactly "expo" or "concert".
- Dates use the form YYYY-MM-DD. "end_date" is null for single-day events.
- Use null for any field you do not know.
- Respond with a JSON array only. No prose, no explanations, no code fences.`

const userTemplate = `List expos and concerts taking place in %s during the week of %s to %s (the week containing %s).

Each array element must be an object with exactly these keys:
{"title": string, "type": "expo" | "concert", "venue": string | null, "address": string | null, "source_url": string | null, "price_range": string | null, "organizer": string | null, "start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD" | null}

If you know of no events, respond with [].`

// WeekOf returns the Monday and Sunday of the ISO week containing day.
func WeekOf(day time.Time) (time.Time, time.Time) {
	offset := (int(day.Weekday()) + 6) % 7
	monday := time.Date(day.Year(), day.Month(), day.Day()-offset, 0, 0, 0, 0, day.Location())
	return monday, monday.AddDate(0, 0, 6)
}

// UserPrompt builds the per-(city, date) request.
func UserPrompt(city string, target time.Time) string {
	monday, sunday := WeekOf(target)
	return fmt.Sprintf(userTemplate, city, monday.Format(time.DateOnly), sunday.Format(time.DateOnly), target.Format(time.DateOnly))
}
