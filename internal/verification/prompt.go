package verification

import (
	"fmt"
	"strings"

	"eventscout/internal/events"
)

// SystemPrompt fixes the output contract for fact checks.
const SystemPrompt = `You are a meticulous fact checker for local event listings.

Decide whether the described event is real and scheduled as stated: the title, city, venue, and dates must all be plausible and consistent with what you know. When you cannot confirm the event, answer false.

You must respond ONLY with a JSON object like: {"verified": true, "confidence": 0.85, "reason": "short explanation"}`

// UserPrompt embeds every known field of the candidate.
func UserPrompt(city string, c events.Candidate) string {
	var b strings.Builder
	b.WriteString("Verify this event listing:\n")
	line := func(label, value string) {
		if value == "" {
			value = "unknown"
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, value)
	}
	line("Title", c.Title)
	line("Type", string(c.Type))
	line("City", city)
	line("Venue", events.Deref(c.Venue))
	line("Address", events.Deref(c.Address))
	line("Start date", c.StartDate)
	line("End date", events.Deref(c.EndDate))
	line("Organizer", events.Deref(c.Organizer))
	line("Price range", events.Deref(c.PriceRange))
	line("Source URL", events.Deref(c.SourceURL))
	return strings.TrimRight(b.String(), "\n")
}
