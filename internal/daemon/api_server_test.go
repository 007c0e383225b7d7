package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eventscout/internal/api"
	"eventscout/internal/events"
	"eventscout/internal/ingestion"
	"eventscout/internal/services"
)

type eventReaderStub struct {
	filter events.Filter
	items  []events.Event
}

func (s *eventReaderStub) Query(_ context.Context, filter events.Filter) (events.Page, error) {
	normalized, err := filter.Normalize()
	if err != nil {
		return events.Page{}, err
	}
	s.filter = normalized
	return events.Page{Items: s.items, Total: len(s.items), Page: normalized.Page, PageSize: normalized.PageSize}, nil
}

func (s *eventReaderStub) GetByIDs(_ context.Context, ids []int64) ([]events.Event, error) {
	var out []events.Event
	for _, ev := range s.items {
		for _, id := range ids {
			if ev.ID == id {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

type syncStub struct {
	trigger string
	result  ingestion.SyncResult
	err     error
}

func (s *syncStub) Sync(ctx context.Context, _ string, _ []time.Time) (ingestion.SyncResult, error) {
	s.trigger, _ = services.TriggerFromContext(ctx)
	return s.result, s.err
}

type recheckStub struct{}

func (recheckStub) Configured() bool { return true }

func (recheckStub) Recheck(context.Context, string, events.Candidate) events.Verdict {
	return events.Verdict{Verified: false, Confidence: 0.1, Reason: "no listing found"}
}

func newTestAPIServer(reader *eventReaderStub, syncer *syncStub) *apiServer {
	var s api.Syncer
	if syncer != nil {
		s = syncer
	}
	return &apiServer{svc: api.NewEventService(reader, s, recheckStub{}, api.WithDefaultCity("上海"))}
}

func serve(t *testing.T, srv *apiServer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	return w
}

func TestAPIServerListEvents(t *testing.T) {
	reader := &eventReaderStub{items: []events.Event{{
		ID:        1,
		City:      "上海",
		Candidate: events.Candidate{Title: "Spring Expo", Type: events.TypeExpo, StartDate: "2025-03-10"},
	}}}
	srv := newTestAPIServer(reader, nil)

	w := serve(t, srv, http.MethodGet, "/api/events?type=expo&city=%E4%B8%8A%E6%B5%B7&q=spring&from=2025-03-01&to=2025-03-31&page=1&pageSize=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	if reader.filter.Type != events.TypeExpo || reader.filter.City != "上海" || reader.filter.Query != "spring" || reader.filter.PageSize != 10 {
		t.Fatalf("filter not parsed: %+v", reader.filter)
	}
	var resp api.EventPage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "Spring Expo" || resp.TotalPages != 1 {
		t.Fatalf("unexpected page: %+v", resp)
	}
	if !strings.Contains(w.Body.String(), `"sourceUrl":null`) {
		t.Fatalf("expected null optionals in payload: %s", w.Body.String())
	}
}

func TestAPIServerListRejectsBadFilters(t *testing.T) {
	srv := newTestAPIServer(&eventReaderStub{}, nil)
	for _, target := range []string{
		"/api/events?type=festival",
		"/api/events?from=2025-13-01x",
		"/api/events?from=2025-03-10&to=2025-03-01",
		"/api/events?page=abc",
		"/api/events?pageSize=-",
		"/api/events?page=9223372036854775807",
	} {
		if w := serve(t, srv, http.MethodGet, target, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestAPIServerMethodNotAllowed(t *testing.T) {
	srv := newTestAPIServer(&eventReaderStub{}, &syncStub{})
	cases := map[string]string{
		"/api/events": http.MethodPost,
		"/api/sync":   http.MethodGet,
		"/api/verify": http.MethodGet,
		"/api/health": http.MethodDelete,
	}
	for target, method := range cases {
		if w := serve(t, srv, method, target, ""); w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", method, target, w.Code)
		}
	}
}

func TestAPIServerSync(t *testing.T) {
	syncer := &syncStub{result: ingestion.SyncResult{Inserted: 1}}
	srv := newTestAPIServer(&eventReaderStub{}, syncer)

	w := serve(t, srv, http.MethodPost, "/api/sync", `{"city":"杭州","targetDate":"2025-01-15"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if syncer.trigger != ingestion.TriggerAPI {
		t.Fatalf("expected api trigger, got %q", syncer.trigger)
	}
	var resp api.SyncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TargetDate != "2025-01-15" || resp.Inserted != 1 || resp.Message != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAPIServerSyncEmptyBodyAndZeroResults(t *testing.T) {
	srv := newTestAPIServer(&eventReaderStub{}, &syncStub{})
	w := serve(t, srv, http.MethodPost, "/api/sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.SyncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.City != "上海" || resp.Message == "" {
		t.Fatalf("expected default city and no-events message: %+v", resp)
	}
}

func TestAPIServerSyncErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		stub *syncStub
		body string
		want int
	}{
		{"unavailable", &syncStub{err: services.Wrap(services.ErrUnavailable, "ingestion", "run", "no key", nil)}, `{}`, http.StatusServiceUnavailable},
		{"conflict", &syncStub{err: ingestion.ErrRunInProgress}, `{}`, http.StatusConflict},
		{"storage", &syncStub{err: services.Wrap(services.ErrStorage, "store", "upsert", "locked", nil)}, `{}`, http.StatusInternalServerError},
		{"bad json", &syncStub{}, `{"city":`, http.StatusBadRequest},
		{"unknown field", &syncStub{}, `{"town":"x"}`, http.StatusBadRequest},
		{"bad date", &syncStub{}, `{"targetDate":"15/01/2025"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, newTestAPIServer(&eventReaderStub{}, tc.stub), http.MethodPost, "/api/sync", tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
			var payload map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil || payload["error"] == "" {
				t.Fatalf("expected error payload, got %s", w.Body.String())
			}
		})
	}
}

func TestAPIServerSyncWithoutIngestor(t *testing.T) {
	w := serve(t, newTestAPIServer(&eventReaderStub{}, nil), http.MethodPost, "/api/sync", `{}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAPIServerVerify(t *testing.T) {
	reader := &eventReaderStub{items: []events.Event{{
		ID:        5,
		City:      "上海",
		Candidate: events.Candidate{Title: "Ghost Gig", Type: events.TypeConcert, StartDate: "2025-03-10"},
	}}}
	srv := newTestAPIServer(reader, nil)

	w := serve(t, srv, http.MethodPost, "/api/verify", `{"ids":[5,6]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.VerifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp.Results)
	}
	if resp.Results[0].ID != 5 || resp.Results[0].Verified || resp.Results[0].Reason != "no listing found" {
		t.Fatalf("unexpected result: %+v", resp.Results[0])
	}
	if resp.Results[1].ID != 6 || resp.Results[1].Reason != "not found" {
		t.Fatalf("unexpected missing result: %+v", resp.Results[1])
	}

	if w := serve(t, srv, http.MethodPost, "/api/verify", `{"ids":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", w.Code)
	}
}

func TestAPIServerRequestIDPassthrough(t *testing.T) {
	srv := newTestAPIServer(&eventReaderStub{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}
