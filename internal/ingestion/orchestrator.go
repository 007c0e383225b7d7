package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventscout/internal/events"
	"eventscout/internal/logging"
	"eventscout/internal/metrics"
	"eventscout/internal/services"
	"eventscout/internal/store"
)

// Triggers recorded on runs.
const (
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
)

// Fetcher lists raw event records for a city and target date.
type Fetcher interface {
	Configured() bool
	Fetch(ctx context.Context, city string, target time.Time) ([]json.RawMessage, error)
}

// Verifier fact-checks one candidate.
type Verifier interface {
	Configured() bool
	Verify(ctx context.Context, city string, candidate events.Candidate) events.Verdict
}

// Writer persists events.
type Writer interface {
	Upsert(ctx context.Context, batch []events.Event) (store.UpsertResult, error)
}

// Orchestrator composes fetch, validation, and verification for a city over
// a set of target dates.
type Orchestrator struct {
	fetcher  Fetcher
	verifier Verifier
	writer   Writer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	workers  int
	locks    *cityLocks
	now      func() time.Time
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithWorkers bounds concurrent verification calls per date. One worker
// verifies candidates sequentially.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLockDir enables cross-process per-city locks in dir.
func WithLockDir(dir string) Option {
	return func(o *Orchestrator) {
		o.locks.dir = strings.TrimSpace(dir)
	}
}

// WithMetrics records run outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock overrides the time source used for run timing.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs an orchestrator.
func New(fetcher Fetcher, verifier Verifier, writer Writer, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:  fetcher,
		verifier: verifier,
		writer:   writer,
		logger:   logging.NewComponentLogger(logger, "ingestion"),
		workers:  1,
		locks:    newCityLocks(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DateReport summarizes one (city, date) unit.
type DateReport struct {
	TargetDate string `json:"targetDate" yaml:"target_date"`
	Fetched    int    `json:"fetched" yaml:"fetched"`
	Rejected   int    `json:"rejected" yaml:"rejected"`
	Candidates int    `json:"candidates" yaml:"candidates"`
	Verified   int    `json:"verified" yaml:"verified"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the outcome of Run.
type Result struct {
	RunID  string            `json:"runId" yaml:"run_id"`
	City   string            `json:"city" yaml:"city"`
	Events []events.Verified `json:"events" yaml:"events"`
	Dates  []DateReport      `json:"dates" yaml:"dates"`
}

// SyncResult is the outcome of Sync.
type SyncResult struct {
	RunID       string       `json:"runId" yaml:"run_id"`
	City        string       `json:"city" yaml:"city"`
	TargetDates []string     `json:"targetDates" yaml:"target_dates"`
	Inserted    int          `json:"inserted" yaml:"inserted"`
	Updated     int          `json:"updated" yaml:"updated"`
	Dates       []DateReport `json:"dates" yaml:"dates"`
}

// Available reports whether both endpoints carry credentials. A run with
// either missing returns services.ErrUnavailable before any upstream call.
func (o *Orchestrator) Available() bool {
	return o.fetcher != nil && o.fetcher.Configured() && o.verifier != nil && o.verifier.Configured()
}

// Run gathers verified events for city across dates. Each date is isolated:
// an error or panic while processing one date is logged and that date
// contributes nothing.
func (o *Orchestrator) Run(ctx context.Context, city string, dates []time.Time) (Result, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ingestion", "run", "City is required", nil)
	}
	runID := uuid.NewString()
	ctx = services.WithRunID(services.WithCity(ctx, city), runID)
	logger := logging.WithContext(ctx, o.logger)
	result := Result{RunID: runID, City: city, Events: []events.Verified{}}

	if !o.Available() {
		logging.WarnWithContext(logger, "ingestion skipped",
			"ingestion_unavailable",
			logging.String(logging.FieldErrorHint, "set primary.api_key and verification.api_key"),
			logging.String(logging.FieldImpact, "no events ingested"),
			logging.Bool("primary_configured", o.fetcher != nil && o.fetcher.Configured()),
			logging.Bool("verification_configured", o.verifier != nil && o.verifier.Configured()),
		)
		return result, services.Wrap(services.ErrUnavailable, "ingestion", "run", "Primary and verification credentials are both required", nil)
	}

	release, err := o.locks.acquire(city)
	if err != nil {
		return result, err
	}
	defer release()

	logger.Info("ingestion run started", logging.Int("dates", len(dates)))
	for _, target := range dates {
		if ctx.Err() != nil {
			logger.Info("ingestion run cancelled", logging.Error(ctx.Err()))
			break
		}
		report, verified := o.runDate(ctx, logger, city, target)
		result.Dates = append(result.Dates, report)
		result.Events = append(result.Events, verified...)
	}
	logger.Info("ingestion run finished", logging.Int("verified", len(result.Events)))
	return result, nil
}

// Sync runs the pipeline and upserts verified events. Storage errors are
// returned; they are the only failure fatal to a run. The upsert is detached
// from ctx cancellation so work already verified is not discarded.
func (o *Orchestrator) Sync(ctx context.Context, city string, dates []time.Time) (SyncResult, error) {
	started := o.now()
	trigger, ok := services.TriggerFromContext(ctx)
	if !ok {
		trigger = TriggerCLI
	}

	out := SyncResult{City: strings.TrimSpace(city), TargetDates: formatDates(dates)}
	result, err := o.Run(ctx, city, dates)
	out.RunID = result.RunID
	out.Dates = result.Dates
	if err != nil {
		o.metrics.ObserveRun(trigger, runOutcome(err), o.now().Sub(started))
		return out, err
	}

	batch := make([]events.Event, 0, len(result.Events))
	for _, v := range result.Events {
		batch = append(batch, events.NewEvent(result.City, v.Candidate))
	}
	// Verified events are kept even if the caller went away mid-run.
	counts, err := o.writer.Upsert(context.WithoutCancel(ctx), batch)
	if err != nil {
		logging.ErrorWithContext(o.logger, "event upsert failed",
			"upsert_failed",
			logging.String(logging.FieldCity, result.City),
			logging.String(logging.FieldRunID, result.RunID),
			logging.String(logging.FieldErrorHint, "check database connectivity and disk space"),
			logging.Error(err),
		)
		o.metrics.ObserveRun(trigger, "storage_error", o.now().Sub(started))
		return out, err
	}
	out.Inserted = counts.Inserted
	out.Updated = counts.Updated

	finished := o.now()
	o.metrics.ObserveUpsert(result.City, counts.Inserted, counts.Updated)
	o.metrics.ObserveRun(trigger, "success", finished.Sub(started))
	o.metrics.MarkSuccess(result.City, finished)
	o.logger.Info("ingestion sync complete",
		logging.String(logging.FieldCity, result.City),
		logging.String(logging.FieldRunID, result.RunID),
		logging.String(logging.FieldTrigger, trigger),
		logging.Int("inserted", counts.Inserted),
		logging.Int("updated", counts.Updated),
		logging.Duration("elapsed", finished.Sub(started)),
	)
	return out, nil
}

func (o *Orchestrator) runDate(ctx context.Context, logger *slog.Logger, city string, target time.Time) (report DateReport, verified []events.Verified) {
	report.TargetDate = target.Format(time.DateOnly)
	logger = logger.With(logging.String(logging.FieldTargetDate, report.TargetDate))
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "ingestion date panicked",
				"ingestion_date_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			report = DateReport{TargetDate: report.TargetDate, Error: fmt.Sprint(r)}
			verified = nil
		}
	}()

	records, err := o.fetcher.Fetch(ctx, city, target)
	if err != nil {
		logging.WarnWithContext(logger, "event fetch failed",
			"ingestion_fetch_failed",
			logging.String(logging.FieldImpact, "no events for this date"),
			logging.Error(err),
		)
		report.Error = err.Error()
		return report, nil
	}
	report.Fetched = len(records)

	batch := events.ValidateBatch(records)
	report.Rejected = batch.Rejected
	report.Candidates = len(batch.Candidates)
	if batch.Rejected > 0 {
		o.metrics.ObserveRejected(batch.Reasons)
		logger.Debug("records rejected by validation",
			logging.Int("rejected", batch.Rejected),
			logging.Any("reasons", batch.Reasons),
		)
	}

	verdicts := o.verifyAll(ctx, city, batch.Candidates)
	for i, candidate := range batch.Candidates {
		if verdicts[i].Verified {
			verified = append(verified, events.Verified{Candidate: candidate, Verdict: verdicts[i]})
		}
	}
	report.Verified = len(verified)
	logger.Info("ingestion date complete",
		logging.Int("fetched", report.Fetched),
		logging.Int("rejected", report.Rejected),
		logging.Int("verified", report.Verified),
	)
	return report, verified
}

// verifyAll verifies candidates with at most o.workers calls in flight and
// returns verdicts in candidate order.
func (o *Orchestrator) verifyAll(ctx context.Context, city string, candidates []events.Candidate) []events.Verdict {
	verdicts := make([]events.Verdict, len(candidates))
	if o.workers <= 1 {
		for i, candidate := range candidates {
			verdicts[i] = o.verifier.Verify(ctx, city, candidate)
		}
		return verdicts
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.workers)
	for i, candidate := range candidates {
		wg.Add(1)
		go func(idx int, c events.Candidate) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				verdicts[idx] = events.Verdict{Reason: "cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()
			verdicts[idx] = o.verifier.Verify(ctx, city, c)
		}(i, candidate)
	}
	wg.Wait()
	return verdicts
}

func runOutcome(err error) string {
	switch {
	case errors.Is(err, ErrRunInProgress):
		return "in_progress"
	case errors.Is(err, services.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, services.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func formatDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(time.DateOnly))
	}
	return out
}
