package store_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"eventscout/internal/events"
	"eventscout/internal/services"
	"eventscout/internal/store"
	"eventscout/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != "0001_events" {
		t.Fatalf("unexpected schema version %q", version)
	}
	if st.Path() != cfg.Database.Path {
		t.Fatalf("expected path %q, got %q", cfg.Database.Path, st.Path())
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if err := reopened.Ping(context.Background()); err != nil {
		t.Fatalf("Ping after reopen failed: %v", err)
	}
}

func TestUpsertEmptyBatch(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	result, err := st.Upsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if result != (store.UpsertResult{}) {
		t.Fatalf("expected zero result, got %+v", result)
	}
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return first })

	expo := events.Candidate{
		Title:      "Expo A",
		Type:       events.TypeExpo,
		StartDate:  "2025-03-01",
		Venue:      events.StringPtr("Hall 1"),
		PriceRange: events.StringPtr("50"),
	}
	concert := testsupport.Candidate("Concert B", events.TypeConcert, "2025-03-02")

	result := testsupport.SeedEvents(t, st, "杭州", expo, concert)
	if result.Inserted != 2 || result.Updated != 0 {
		t.Fatalf("expected 2 inserted, got %+v", result)
	}

	original, err := st.GetByHash(ctx, events.NewEvent("杭州", expo).Hash)
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}

	later := first.Add(24 * time.Hour)
	st.SetClock(func() time.Time { return later })
	expo.PriceRange = events.StringPtr("80-120")
	expo.EndDate = events.StringPtr("2025-03-03")

	result = testsupport.SeedEvents(t, st, "杭州", expo)
	if result.Inserted != 0 || result.Updated != 1 {
		t.Fatalf("expected 1 updated, got %+v", result)
	}

	refreshed, err := st.GetByHash(ctx, original.Hash)
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}
	if refreshed.ID != original.ID {
		t.Fatalf("expected id %d to be kept, got %d", original.ID, refreshed.ID)
	}
	if events.Deref(refreshed.PriceRange) != "80-120" || events.Deref(refreshed.EndDate) != "2025-03-03" {
		t.Fatalf("expected mutable fields to be overwritten, got %+v", refreshed.Candidate)
	}
	if !refreshed.CreatedAt.Equal(first) {
		t.Fatalf("expected created_at %v, got %v", first, refreshed.CreatedAt)
	}
	if !refreshed.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, refreshed.UpdatedAt)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	expo := testsupport.Candidate("Expo A", events.TypeExpo, "2025-03-01")
	testsupport.SeedEvents(t, st, "杭州", expo)
	testsupport.SeedEvents(t, st, "杭州", expo)

	page, err := st.Query(ctx, events.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected a single stored row, got %d", page.Total)
	}
}

func TestUpsertCollapsesDuplicateHashesInBatch(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.Candidate("Expo A", events.TypeExpo, "2025-03-01")
	b := a
	b.Organizer = events.StringPtr("Later Org")

	result := testsupport.SeedEvents(t, st, "杭州", a, b)
	if result.Inserted != 1 || result.Updated != 0 {
		t.Fatalf("expected one insert, got %+v", result)
	}
	stored, err := st.GetByHash(ctx, events.NewEvent("杭州", a).Hash)
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}
	if events.Deref(stored.Organizer) != "Later Org" {
		t.Fatalf("expected last occurrence to win, got %v", stored.Organizer)
	}
}

func TestQueryDateRangeOverlap(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	ranged := testsupport.Candidate("Long Expo", events.TypeExpo, "2025-01-10")
	ranged.EndDate = events.StringPtr("2025-01-15")
	single := testsupport.Candidate("One Night", events.TypeConcert, "2025-01-18")
	testsupport.SeedEvents(t, st, "杭州", ranged, single)

	tests := []struct {
		name   string
		from   string
		to     string
		titles []string
	}{
		{"overlaps tail", "2025-01-14", "2025-01-20", []string{"Long Expo", "One Night"}},
		{"after end", "2025-01-16", "2025-01-20", []string{"One Night"}},
		{"before start", "2025-01-01", "2025-01-09", nil},
		{"inside", "2025-01-11", "2025-01-12", []string{"Long Expo"}},
		{"open ended from", "2025-01-15", "", []string{"Long Expo", "One Night"}},
		{"open ended to", "", "2025-01-10", []string{"Long Expo"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := st.Query(ctx, events.Filter{From: tc.from, To: tc.to})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(page.Items) != len(tc.titles) {
				t.Fatalf("expected %v, got %d items", tc.titles, len(page.Items))
			}
			for i, title := range tc.titles {
				if page.Items[i].Title != title {
					t.Fatalf("item %d: expected %q, got %q", i, title, page.Items[i].Title)
				}
			}
		})
	}
}

func TestQueryFiltersAndPaginates(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var batch []events.Candidate
	for i := 1; i <= 25; i++ {
		eventType := events.TypeExpo
		if i%5 == 0 {
			eventType = events.TypeConcert
		}
		c := testsupport.Candidate(fmt.Sprintf("Event %02d", i), eventType, fmt.Sprintf("2025-02-%02d", i))
		if i == 7 {
			c.Venue = events.StringPtr("West Lake Arena")
		}
		batch = append(batch, c)
	}
	testsupport.SeedEvents(t, st, "杭州", batch...)
	testsupport.SeedEvents(t, st, "上海", testsupport.Candidate("Shanghai Expo", events.TypeExpo, "2025-02-01"))

	page, err := st.Query(ctx, events.Filter{City: "杭州", Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 25 || len(page.Items) != 5 || page.TotalPages() != 3 {
		t.Fatalf("unexpected page: total=%d items=%d", page.Total, len(page.Items))
	}
	if page.Items[0].Title != "Event 21" {
		t.Fatalf("expected start-date ordering, first item %q", page.Items[0].Title)
	}

	page, err = st.Query(ctx, events.Filter{Type: events.TypeConcert})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 5 {
		t.Fatalf("expected 5 concerts, got %d", page.Total)
	}

	page, err = st.Query(ctx, events.Filter{Query: "west LAKE"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 1 || page.Items[0].Title != "Event 07" {
		t.Fatalf("expected venue substring match, got %+v", page.Items)
	}

	page, err = st.Query(ctx, events.Filter{Query: "100%"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected literal percent to match nothing, got %d", page.Total)
	}

	page, err = st.Query(ctx, events.Filter{City: "杭州", Page: 9})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 25 || len(page.Items) != 0 {
		t.Fatalf("expected empty page past the end, got %d items", len(page.Items))
	}
}

func TestQueryRejectsInvalidFilter(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	_, err := st.Query(context.Background(), events.Filter{From: "01/02/2025"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQueryRejectsOverflowingPage(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedEvents(t, st, "杭州",
		testsupport.Candidate("Lantern Expo", events.TypeExpo, "2025-03-01"),
		testsupport.Candidate("Spring Concert", events.TypeConcert, "2025-03-02"),
	)

	page, err := st.Query(context.Background(), events.Filter{Page: math.MaxInt, PageSize: 20})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got page=%d items=%d err=%v", page.Page, len(page.Items), err)
	}
}

func TestGetByIDsKeepsRequestOrder(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.SeedEvents(t, st, "杭州",
		testsupport.Candidate("A", events.TypeExpo, "2025-03-01"),
		testsupport.Candidate("B", events.TypeExpo, "2025-03-02"),
	)
	page, err := st.Query(ctx, events.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	a, b := page.Items[0].ID, page.Items[1].ID

	found, err := st.GetByIDs(ctx, []int64{b, 9999, a, b})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(found) != 2 || found[0].ID != b || found[1].ID != a {
		t.Fatalf("unexpected result %+v", found)
	}
}

func TestGetByHashNotFound(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	_, err := st.GetByHash(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatsAndPrune(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	old := testsupport.Candidate("Old Expo", events.TypeExpo, "2024-12-01")
	old.EndDate = events.StringPtr("2024-12-20")
	running := testsupport.Candidate("Running Expo", events.TypeExpo, "2024-12-01")
	running.EndDate = events.StringPtr("2025-02-01")
	testsupport.SeedEvents(t, st, "杭州", old, running)
	testsupport.SeedEvents(t, st, "上海", testsupport.Candidate("Gig", events.TypeConcert, "2025-01-05"))

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 || stats.ByType["expo"] != 2 || stats.ByCity["上海"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	removed, err := st.Prune(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned event, got %d", removed)
	}

	if _, err := st.Prune(ctx, "yesterday"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
