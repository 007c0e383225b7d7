package ingestion_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eventscout/internal/discovery"
	"eventscout/internal/events"
	"eventscout/internal/ingestion"
	"eventscout/internal/logging"
	"eventscout/internal/services"
	"eventscout/internal/store"
	"eventscout/internal/testsupport"
	"eventscout/internal/verification"
)

var target = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestSyncEndToEndInsertsThenUpdates(t *testing.T) {
	var verifyCalls atomic.Int64
	srv := testsupport.NewChatServer(t, func(req testsupport.ChatRequest) testsupport.ChatReply {
		if req.System() == discovery.SystemPrompt {
			return testsupport.ChatReply{Content: `[{"title":"Expo A","type":"expo","start_date":"2025-03-01","venue":null,"address":null,"source_url":null,"price_range":null,"organizer":null,"end_date":null}]`}
		}
		verifyCalls.Add(1)
		return testsupport.ChatReply{Content: `{"verified":true,"confidence":0.9,"reason":"known event"}`}
	})
	cfg := testsupport.NewConfig(t, testsupport.WithLLMServer(srv.BaseURL()))
	st := testsupport.MustOpenStore(t, cfg)

	fetcher, err := discovery.NewClient(cfg.PrimaryLLM(), logging.NewNop())
	if err != nil {
		t.Fatalf("discovery.NewClient: %v", err)
	}
	verifier, err := verification.NewClient(cfg.VerificationLLM(), verification.PolicyFromConfig(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("verification.NewClient: %v", err)
	}
	orch := ingestion.New(fetcher, verifier, st, logging.NewNop(), ingestion.WithLockDir(cfg.CityLockDir()))
	ctx := context.Background()

	first, err := orch.Sync(ctx, "杭州", []time.Time{target})
	if err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	if first.Inserted != 1 || first.Updated != 0 {
		t.Fatalf("expected inserted=1 updated=0, got %+v", first)
	}
	second, err := orch.Sync(ctx, "杭州", []time.Time{target})
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if second.Inserted != 0 || second.Updated != 1 {
		t.Fatalf("expected inserted=0 updated=1, got %+v", second)
	}
	if verifyCalls.Load() != 2 {
		t.Fatalf("expected one verification per run, got %d", verifyCalls.Load())
	}

	page, err := st.Query(ctx, events.Filter{City: "杭州"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Total != 1 || page.Items[0].Title != "Expo A" {
		t.Fatalf("unexpected stored events %+v", page.Items)
	}
}

type fakeFetcher struct {
	configured bool
	fetch      func(city string, target time.Time) ([]json.RawMessage, error)
	calls      atomic.Int64
}

func (f *fakeFetcher) Configured() bool { return f.configured }

func (f *fakeFetcher) Fetch(_ context.Context, city string, target time.Time) ([]json.RawMessage, error) {
	f.calls.Add(1)
	return f.fetch(city, target)
}

type fakeVerifier struct {
	configured bool
	verify     func(c events.Candidate) events.Verdict
	inFlight   atomic.Int64
	peak       atomic.Int64
}

func (f *fakeVerifier) Configured() bool { return f.configured }

func (f *fakeVerifier) Verify(_ context.Context, _ string, c events.Candidate) events.Verdict {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return f.verify(c)
}

type fakeWriter struct {
	batches [][]events.Event
	ctxErrs []error
	err     error
}

func (f *fakeWriter) Upsert(ctx context.Context, batch []events.Event) (store.UpsertResult, error) {
	f.batches = append(f.batches, batch)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.err != nil {
		return store.UpsertResult{}, f.err
	}
	return store.UpsertResult{Inserted: len(batch)}, nil
}

func rawRecords(t *testing.T, records ...map[string]any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		out = append(out, data)
	}
	return out
}

func verifyAll(events.Candidate) events.Verdict { return events.Verdict{Verified: true, Confidence: 1} }

func TestRunRequiresBothCredentials(t *testing.T) {
	for name, tc := range map[string]struct{ primary, verify bool }{
		"no primary": {false, true},
		"no verify":  {true, false},
		"neither":    {false, false},
	} {
		t.Run(name, func(t *testing.T) {
			fetcher := &fakeFetcher{configured: tc.primary, fetch: func(string, time.Time) ([]json.RawMessage, error) { return nil, nil }}
			verifier := &fakeVerifier{configured: tc.verify, verify: verifyAll}
			orch := ingestion.New(fetcher, verifier, &fakeWriter{}, logging.NewNop())

			result, err := orch.Run(context.Background(), "杭州", []time.Time{target})
			if !errors.Is(err, services.ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
			if len(result.Events) != 0 || fetcher.calls.Load() != 0 {
				t.Fatalf("expected no work, got %d events and %d fetches", len(result.Events), fetcher.calls.Load())
			}
		})
	}
}

func TestRunIsolatesDates(t *testing.T) {
	second := target.AddDate(0, 0, 7)
	third := target.AddDate(0, 0, 14)
	fetcher := &fakeFetcher{configured: true, fetch: func(_ string, day time.Time) ([]json.RawMessage, error) {
		switch {
		case day.Equal(target):
			panic("upstream exploded")
		case day.Equal(second):
			return nil, errors.New("fetch failed")
		default:
			return rawRecords(t,
				map[string]any{"title": "Concert C", "type": "concert", "start_date": "2025-03-15"},
				map[string]any{"title": "Bad", "type": "festival", "start_date": "2025-03-15"},
			), nil
		}
	}}
	verifier := &fakeVerifier{configured: true, verify: verifyAll}
	orch := ingestion.New(fetcher, verifier, &fakeWriter{}, logging.NewNop())

	result, err := orch.Run(context.Background(), "杭州", []time.Time{target, second, third})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Dates) != 3 {
		t.Fatalf("expected 3 date reports, got %d", len(result.Dates))
	}
	if result.Dates[0].Error == "" || result.Dates[1].Error == "" {
		t.Fatalf("expected errors recorded for failing dates: %+v", result.Dates)
	}
	if result.Dates[2].Fetched != 2 || result.Dates[2].Rejected != 1 || result.Dates[2].Verified != 1 {
		t.Fatalf("unexpected report for third date: %+v", result.Dates[2])
	}
	if len(result.Events) != 1 || result.Events[0].Title != "Concert C" {
		t.Fatalf("unexpected events %+v", result.Events)
	}
	if result.RunID == "" {
		t.Fatal("expected run id")
	}
}

func TestRunKeepsOnlyVerifiedCandidates(t *testing.T) {
	fetcher := &fakeFetcher{configured: true, fetch: func(string, time.Time) ([]json.RawMessage, error) {
		return rawRecords(t,
			map[string]any{"title": "Real Expo", "type": "expo", "start_date": "2025-03-01"},
			map[string]any{"title": "Made Up Expo", "type": "expo", "start_date": "2025-03-01"},
		), nil
	}}
	verifier := &fakeVerifier{configured: true, verify: func(c events.Candidate) events.Verdict {
		return events.Verdict{Verified: c.Title == "Real Expo"}
	}}
	writer := &fakeWriter{}
	orch := ingestion.New(fetcher, verifier, writer, logging.NewNop())

	result, err := orch.Sync(context.Background(), "杭州", []time.Time{target})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Inserted != 1 || len(writer.batches) != 1 || len(writer.batches[0]) != 1 {
		t.Fatalf("expected one event written, got %+v / %v", result, writer.batches)
	}
	stored := writer.batches[0][0]
	if stored.City != "杭州" || stored.Hash != events.Hash("Real Expo", "2025-03-01", nil, "杭州") {
		t.Fatalf("unexpected stored event %+v", stored)
	}
	if len(result.TargetDates) != 1 || result.TargetDates[0] != "2025-03-01" {
		t.Fatalf("unexpected target dates %v", result.TargetDates)
	}
}

func TestSyncPropagatesStorageFailure(t *testing.T) {
	fetcher := &fakeFetcher{configured: true, fetch: func(string, time.Time) ([]json.RawMessage, error) {
		return rawRecords(t, map[string]any{"title": "Expo A", "type": "expo", "start_date": "2025-03-01"}), nil
	}}
	verifier := &fakeVerifier{configured: true, verify: verifyAll}
	writer := &fakeWriter{err: services.Wrap(services.ErrStorage, "store", "upsert", "disk full", nil)}
	orch := ingestion.New(fetcher, verifier, writer, logging.NewNop())

	if _, err := orch.Sync(context.Background(), "杭州", []time.Time{target}); !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSyncWritesVerifiedEventsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{configured: true, fetch: func(string, time.Time) ([]json.RawMessage, error) {
		return rawRecords(t, map[string]any{"title": "Expo A", "type": "expo", "start_date": "2025-03-01"}), nil
	}}
	verifier := &fakeVerifier{configured: true, verify: func(events.Candidate) events.Verdict {
		cancel()
		return events.Verdict{Verified: true, Confidence: 0.9}
	}}
	writer := &fakeWriter{}
	orch := ingestion.New(fetcher, verifier, writer, logging.NewNop())

	result, err := orch.Sync(ctx, "杭州", []time.Time{target})
	if err != nil {
		t.Fatalf("Sync after cancellation: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("expected caller context to be cancelled")
	}
	if len(writer.batches) != 1 || len(writer.batches[0]) != 1 {
		t.Fatalf("expected verified event written, got %v", writer.batches)
	}
	if writer.ctxErrs[0] != nil {
		t.Fatalf("expected upsert context to stay live, got %v", writer.ctxErrs[0])
	}
	if result.Inserted != 1 {
		t.Fatalf("expected one insert reported, got %+v", result)
	}
}

func TestRunBoundsVerificationWorkers(t *testing.T) {
	records := make([]map[string]any, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, map[string]any{"title": string(rune('A' + i)), "type": "expo", "start_date": "2025-03-01"})
	}
	fetcher := &fakeFetcher{configured: true, fetch: func(string, time.Time) ([]json.RawMessage, error) {
		return rawRecords(t, records...), nil
	}}
	verifier := &fakeVerifier{configured: true, verify: func(c events.Candidate) events.Verdict {
		time.Sleep(5 * time.Millisecond)
		return events.Verdict{Verified: true}
	}}
	orch := ingestion.New(fetcher, verifier, &fakeWriter{}, logging.NewNop(), ingestion.WithWorkers(3))

	result, err := orch.Run(context.Background(), "杭州", []time.Time{target})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Events) != 12 {
		t.Fatalf("expected 12 verified events, got %d", len(result.Events))
	}
	for i, ev := range result.Events {
		if ev.Title != string(rune('A'+i)) {
			t.Fatalf("expected candidate order to be kept, position %d has %q", i, ev.Title)
		}
	}
	if peak := verifier.peak.Load(); peak > 3 {
		t.Fatalf("expected at most 3 concurrent verifications, saw %d", peak)
	}
}

func TestConcurrentRunsForSameCityConflict(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fetcher := &fakeFetcher{configured: true, fetch: func(city string, _ time.Time) ([]json.RawMessage, error) {
		if city == "杭州" {
			once.Do(func() { close(entered) })
			<-release
		}
		return nil, nil
	}}
	verifier := &fakeVerifier{configured: true, verify: verifyAll}
	orch := ingestion.New(fetcher, verifier, &fakeWriter{}, logging.NewNop(), ingestion.WithLockDir(t.TempDir()))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(ctx, "杭州", []time.Time{target})
		done <- err
	}()
	<-entered

	if _, err := orch.Run(ctx, "杭州", []time.Time{target}); !errors.Is(err, ingestion.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if !errors.Is(ingestion.ErrRunInProgress, services.ErrConflict) {
		t.Fatal("expected ErrRunInProgress to be a conflict")
	}
	if _, err := orch.Run(ctx, "上海", []time.Time{target}); err != nil {
		t.Fatalf("expected other city to run, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := orch.Run(ctx, "杭州", []time.Time{target}); err != nil {
		t.Fatalf("expected lock to be released, got %v", err)
	}
}

func TestRunRequiresCity(t *testing.T) {
	orch := ingestion.New(&fakeFetcher{configured: true}, &fakeVerifier{configured: true}, &fakeWriter{}, logging.NewNop())
	if _, err := orch.Run(context.Background(), "  ", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
