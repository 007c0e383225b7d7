package api_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"eventscout/internal/api"
	"eventscout/internal/events"
	"eventscout/internal/ingestion"
	"eventscout/internal/services"
)

type stubReader struct {
	page   events.Page
	byID   map[int64]events.Event
	filter events.Filter
	err    error
}

func (s *stubReader) Query(_ context.Context, filter events.Filter) (events.Page, error) {
	s.filter = filter
	return s.page, s.err
}

func (s *stubReader) GetByIDs(_ context.Context, ids []int64) ([]events.Event, error) {
	out := make([]events.Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := s.byID[id]; ok {
			out = append(out, ev)
		}
	}
	return out, s.err
}

type stubSyncer struct {
	city   string
	dates  []time.Time
	result ingestion.SyncResult
	err    error
}

func (s *stubSyncer) Sync(_ context.Context, city string, dates []time.Time) (ingestion.SyncResult, error) {
	s.city = city
	s.dates = dates
	return s.result, s.err
}

type stubRechecker struct {
	configured bool
	calls      []string
}

func (s *stubRechecker) Configured() bool { return s.configured }

func (s *stubRechecker) Recheck(_ context.Context, city string, c events.Candidate) events.Verdict {
	s.calls = append(s.calls, city+"/"+c.Title)
	return events.Verdict{Verified: true, Confidence: 0.8, Reason: "listed on venue site"}
}

func TestNewEventServiceNilStore(t *testing.T) {
	if svc := api.NewEventService(nil, nil, nil); svc != nil {
		t.Fatalf("expected nil service for nil store")
	}
}

func TestListConvertsPage(t *testing.T) {
	created := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	reader := &stubReader{page: events.Page{
		Items: []events.Event{{
			ID:   7,
			City: "上海",
			Candidate: events.Candidate{
				Title:     "Spring Expo",
				Type:      events.TypeExpo,
				Venue:     events.StringPtr("NECC"),
				StartDate: "2025-03-10",
			},
			CreatedAt: created,
			UpdatedAt: created,
		}},
		Total:    41,
		Page:     2,
		PageSize: 20,
	}}
	svc := api.NewEventService(reader, nil, nil)

	page, err := svc.List(context.Background(), events.Filter{City: "上海", Page: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if reader.filter.City != "上海" || reader.filter.Page != 2 {
		t.Fatalf("filter not forwarded: %+v", reader.filter)
	}
	if page.Total != 41 || page.TotalPages != 3 || len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	item := page.Items[0]
	if item.ID != 7 || item.Type != "expo" || item.Venue == nil || *item.Venue != "NECC" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.EndDate != nil || item.Address != nil {
		t.Fatalf("expected absent optionals to stay nil: %+v", item)
	}
	if item.CreatedAt != "2025-03-01T08:30:00.000Z" {
		t.Fatalf("createdAt = %q", item.CreatedAt)
	}
}

func TestListEmptyPageHasItemsSlice(t *testing.T) {
	svc := api.NewEventService(&stubReader{page: events.Page{Page: 1, PageSize: 20}}, nil, nil)
	page, err := svc.List(context.Background(), events.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 || page.TotalPages != 0 {
		t.Fatalf("unexpected empty page: %+v", page)
	}
}

func TestSyncDefaultsCityAndDate(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	// 2025-02-27 20:00 UTC is already 2025-02-28 in Shanghai.
	now := time.Date(2025, 2, 27, 20, 0, 0, 0, time.UTC)
	syncer := &stubSyncer{result: ingestion.SyncResult{RunID: "run-1", Inserted: 2, Updated: 1}}
	svc := api.NewEventService(&stubReader{}, syncer, nil,
		api.WithDefaultCity("上海"),
		api.WithLocation(shanghai),
		api.WithClock(func() time.Time { return now }),
	)

	resp, err := svc.Sync(context.Background(), api.SyncRequest{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if syncer.city != "上海" || len(syncer.dates) != 1 {
		t.Fatalf("unexpected sync call: city=%q dates=%v", syncer.city, syncer.dates)
	}
	if resp.TargetDate != "2025-02-28" || resp.Inserted != 2 || resp.Updated != 1 || resp.RunID != "run-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Message != "" {
		t.Fatalf("expected no message when events were written, got %q", resp.Message)
	}
}

func TestSyncZeroResultsSetsMessage(t *testing.T) {
	syncer := &stubSyncer{}
	svc := api.NewEventService(&stubReader{}, syncer, nil)

	resp, err := svc.Sync(context.Background(), api.SyncRequest{City: "杭州", TargetDate: "2025-01-15"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if resp.Inserted != 0 || resp.Updated != 0 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if !strings.Contains(resp.Message, "杭州") || !strings.Contains(resp.Message, "2025-01-15") {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if got := syncer.dates[0].Format(time.DateOnly); got != "2025-01-15" {
		t.Fatalf("target date = %s", got)
	}
}

func TestSyncErrors(t *testing.T) {
	cases := []struct {
		name   string
		svc    *api.EventService
		req    api.SyncRequest
		status int
	}{
		{"no syncer", api.NewEventService(&stubReader{}, nil, nil), api.SyncRequest{City: "上海"}, 503},
		{"no city", api.NewEventService(&stubReader{}, &stubSyncer{}, nil), api.SyncRequest{}, 400},
		{"bad date", api.NewEventService(&stubReader{}, &stubSyncer{}, nil), api.SyncRequest{City: "上海", TargetDate: "2025/01/15"}, 400},
		{"impossible date", api.NewEventService(&stubReader{}, &stubSyncer{}, nil), api.SyncRequest{City: "上海", TargetDate: "2025-02-30"}, 400},
		{"busy", api.NewEventService(&stubReader{}, &stubSyncer{err: ingestion.ErrRunInProgress}, nil), api.SyncRequest{City: "上海"}, 409},
		{"missing credential", api.NewEventService(&stubReader{}, &stubSyncer{err: services.Wrap(services.ErrUnavailable, "ingestion", "run", "no key", nil)}, nil), api.SyncRequest{City: "上海"}, 503},
		{"storage", api.NewEventService(&stubReader{}, &stubSyncer{err: services.Wrap(services.ErrStorage, "store", "upsert", "disk full", nil)}, nil), api.SyncRequest{City: "上海"}, 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.svc.Sync(context.Background(), tc.req)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := services.HTTPStatus(err); got != tc.status {
				t.Fatalf("status = %d, want %d (err=%v)", got, tc.status, err)
			}
		})
	}
}

func TestVerifyReportsEachID(t *testing.T) {
	reader := &stubReader{byID: map[int64]events.Event{
		3: {ID: 3, City: "上海", Candidate: events.Candidate{Title: "Jazz Night", Type: events.TypeConcert, StartDate: "2025-03-01"}},
	}}
	checker := &stubRechecker{configured: true}
	svc := api.NewEventService(reader, nil, checker)

	resp, err := svc.Verify(context.Background(), api.VerifyRequest{IDs: []int64{3, 99, 3}})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected deduplicated results, got %+v", resp.Results)
	}
	if r := resp.Results[0]; r.ID != 3 || !r.Verified || r.Confidence != 0.8 {
		t.Fatalf("unexpected first result: %+v", r)
	}
	if r := resp.Results[1]; r.ID != 99 || r.Verified || r.Reason != "not found" {
		t.Fatalf("unexpected missing result: %+v", r)
	}
	if len(checker.calls) != 1 || checker.calls[0] != "上海/Jazz Night" {
		t.Fatalf("unexpected recheck calls: %v", checker.calls)
	}
}

func TestVerifyErrors(t *testing.T) {
	reader := &stubReader{}
	cases := []struct {
		name   string
		svc    *api.EventService
		ids    []int64
		status int
	}{
		{"empty", api.NewEventService(reader, nil, &stubRechecker{configured: true}), nil, 400},
		{"unconfigured", api.NewEventService(reader, nil, &stubRechecker{}), []int64{1}, 503},
		{"nil verifier", api.NewEventService(reader, nil, nil), []int64{1}, 503},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.svc.Verify(context.Background(), api.VerifyRequest{IDs: tc.ids})
			if got := services.HTTPStatus(err); got != tc.status {
				t.Fatalf("status = %d, want %d (err=%v)", got, tc.status, err)
			}
		})
	}

	tooMany := make([]int64, api.MaxVerifyIDs+1)
	for i := range tooMany {
		tooMany[i] = int64(i + 1)
	}
	svc := api.NewEventService(reader, nil, &stubRechecker{configured: true})
	if _, err := svc.Verify(context.Background(), api.VerifyRequest{IDs: tooMany}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for oversized request, got %v", err)
	}
}
