package testsupport

import (
	"context"
	"testing"

	"eventscout/internal/config"
	"eventscout/internal/events"
	"eventscout/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedEvents upserts candidates for city and fails the test on error.
func SeedEvents(t testing.TB, st *store.Store, city string, candidates ...events.Candidate) store.UpsertResult {
	t.Helper()

	batch := make([]events.Event, 0, len(candidates))
	for _, c := range candidates {
		batch = append(batch, events.NewEvent(city, c))
	}
	result, err := st.Upsert(context.Background(), batch)
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return result
}

// Candidate builds a minimal valid candidate.
func Candidate(title string, eventType events.Type, start string) events.Candidate {
	return events.Candidate{Title: title, Type: eventType, StartDate: start}
}
