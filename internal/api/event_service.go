package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventscout/internal/events"
	"eventscout/internal/ingestion"
	"eventscout/internal/services"
)

// MaxVerifyIDs bounds one verify-on-demand request.
const MaxVerifyIDs = 100

// EventReader abstracts the store queries the API needs.
type EventReader interface {
	Query(ctx context.Context, filter events.Filter) (events.Page, error)
	GetByIDs(ctx context.Context, ids []int64) ([]events.Event, error)
}

// Syncer runs ingestion and persists the result.
type Syncer interface {
	Sync(ctx context.Context, city string, dates []time.Time) (ingestion.SyncResult, error)
}

// Rechecker re-verifies a candidate without consulting any memo.
type Rechecker interface {
	Configured() bool
	Recheck(ctx context.Context, city string, candidate events.Candidate) events.Verdict
}

// EventService exposes list, sync, and verify operations returning API DTOs.
type EventService struct {
	store       EventReader
	syncer      Syncer
	verifier    Rechecker
	defaultCity string
	location    *time.Location
	now         func() time.Time
}

// ServiceOption customizes the EventService.
type ServiceOption func(*EventService)

// WithDefaultCity sets the city used when a sync request names none.
func WithDefaultCity(city string) ServiceOption {
	return func(s *EventService) {
		s.defaultCity = strings.TrimSpace(city)
	}
}

// WithLocation sets the timezone that defines "today" for syncs.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *EventService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *EventService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewEventService constructs an EventService. syncer and verifier may be nil,
// in which case Sync and Verify report the service as unavailable.
func NewEventService(store EventReader, syncer Syncer, verifier Rechecker, opts ...ServiceOption) *EventService {
	if store == nil {
		return nil
	}
	svc := &EventService{
		store:    store,
		syncer:   syncer,
		verifier: verifier,
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// List returns one page of events matching filter.
func (s *EventService) List(ctx context.Context, filter events.Filter) (EventPage, error) {
	if s == nil || s.store == nil {
		return EventPage{Items: []Event{}}, nil
	}
	page, err := s.store.Query(ctx, filter)
	if err != nil {
		return EventPage{}, err
	}
	return FromPage(page), nil
}

// Sync runs one ingestion pass for a single target date.
func (s *EventService) Sync(ctx context.Context, req SyncRequest) (SyncResponse, error) {
	if s == nil || s.syncer == nil {
		return SyncResponse{}, services.Wrap(services.ErrUnavailable, "api", "sync", "Ingestion is not configured", nil)
	}
	city := strings.TrimSpace(req.City)
	if city == "" {
		city = s.defaultCity
	}
	if city == "" {
		return SyncResponse{}, services.Wrap(services.ErrValidation, "api", "sync", "city is required", nil)
	}

	target := ingestion.Today(s.now(), s.location)
	if value := strings.TrimSpace(req.TargetDate); value != "" {
		if !events.IsDate(value) {
			return SyncResponse{}, services.Wrap(services.ErrValidation, "api", "sync", fmt.Sprintf("targetDate must match YYYY-MM-DD, got %q", value), nil)
		}
		parsed, err := ingestion.ParseDate(value, s.location)
		if err != nil {
			return SyncResponse{}, services.Wrap(services.ErrValidation, "api", "sync", fmt.Sprintf("invalid targetDate %q", value), err)
		}
		target = parsed
	}

	result, err := s.syncer.Sync(ctx, city, []time.Time{target})
	resp := SyncResponse{
		RunID:      result.RunID,
		City:       city,
		TargetDate: target.Format(time.DateOnly),
		Inserted:   result.Inserted,
		Updated:    result.Updated,
	}
	if err != nil {
		return resp, err
	}
	if resp.Inserted == 0 && resp.Updated == 0 {
		resp.Message = fmt.Sprintf("No verified events found for %s in the week of %s", city, resp.TargetDate)
	}
	return resp, nil
}

// Verify re-runs verification against the stored fields of each id. Stored
// rows are never modified. Unknown ids are reported as unverified.
func (s *EventService) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	ids := uniqueIDs(req.IDs)
	if len(ids) == 0 {
		return VerifyResponse{}, services.Wrap(services.ErrValidation, "api", "verify", "ids must not be empty", nil)
	}
	if len(ids) > MaxVerifyIDs {
		return VerifyResponse{}, services.Wrap(services.ErrValidation, "api", "verify", fmt.Sprintf("at most %d ids per request", MaxVerifyIDs), nil)
	}
	if s == nil || s.verifier == nil || !s.verifier.Configured() {
		return VerifyResponse{}, services.Wrap(services.ErrUnavailable, "api", "verify", "Verification API key not configured", nil)
	}

	found, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return VerifyResponse{}, err
	}
	byID := make(map[int64]events.Event, len(found))
	for _, ev := range found {
		byID[ev.ID] = ev
	}

	results := make([]VerifyResult, 0, len(ids))
	for _, id := range ids {
		ev, ok := byID[id]
		if !ok {
			results = append(results, VerifyResult{ID: id, Reason: "not found"})
			continue
		}
		verdict := s.verifier.Recheck(ctx, ev.City, ev.Candidate)
		results = append(results, VerifyResult{
			ID:         id,
			Verified:   verdict.Verified,
			Confidence: verdict.Confidence,
			Reason:     verdict.Reason,
		})
	}
	return VerifyResponse{Results: results}, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
