package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"eventscout/internal/api"
	"eventscout/internal/config"
	"eventscout/internal/ingestion"
	"eventscout/internal/logging"
	"eventscout/internal/notifications"
	"eventscout/internal/services"
)

// Syncer runs one ingestion pass for a city and persists the result.
type Syncer interface {
	Sync(ctx context.Context, city string, dates []time.Time) (ingestion.SyncResult, error)
}

// Scheduler triggers a daily ingestion of every configured city across the
// rolling window of target dates.
type Scheduler struct {
	syncer   Syncer
	logger   *slog.Logger
	cities   []string
	weeks    int
	hour     int
	minute   int
	loc      *time.Location
	enabled  bool
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	notifier notifications.Service

	mu   sync.Mutex
	next time.Time
	runs map[string]api.RunSummary
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithNotifier reports each completed run through n.
func WithNotifier(n notifications.Service) SchedulerOption {
	return func(s *Scheduler) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewScheduler builds a scheduler from the ingest configuration.
func NewScheduler(cfg *config.Config, syncer Syncer, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	hour, minute := cfg.RunAtClock()
	s := &Scheduler{
		syncer:   syncer,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		cities:   cfg.IngestCities(),
		weeks:    cfg.Ingest.WindowWeeks,
		hour:     hour,
		minute:   minute,
		loc:      cfg.Location(),
		enabled:  cfg.Ingest.SchedulerEnabled,
		now:      time.Now,
		after:    time.After,
		notifier: notifications.NewService(nil),
		runs:     make(map[string]api.RunSummary),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextRun returns the first scheduled time strictly after from.
func (s *Scheduler) NextRun(from time.Time) time.Time {
	local := from.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run waits for each scheduled time and ingests every city until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	if s == nil || !s.enabled || s.syncer == nil {
		return
	}
	for {
		next := s.NextRun(s.now())
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()
		s.logger.Info("next scheduled ingestion", logging.String("at", next.Format(time.RFC3339)))

		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(s.now())):
		}
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("scheduled ingestion finished with errors",
				logging.Error(err),
				logging.String(logging.FieldEventType, "scheduled_run_errors"),
				logging.String(logging.FieldImpact, "some cities were not refreshed"),
			)
		}
	}
}

// RunOnce ingests every configured city immediately. A failing city does not
// stop the others; the joined error reports all failures.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.syncer == nil {
		return services.Wrap(services.ErrUnavailable, "scheduler", "run", "Ingestion is not configured", nil)
	}
	if len(s.cities) == 0 {
		return services.Wrap(services.ErrConfiguration, "scheduler", "run", "No cities configured", nil)
	}
	ctx = services.WithTrigger(ctx, ingestion.TriggerSchedule)
	started := s.now()
	dates := ingestion.WindowDates(ingestion.Today(started, s.loc), s.weeks)

	var errs []error
	outcomes := make([]notifications.CityOutcome, 0, len(s.cities))
	for _, city := range s.cities {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		summary := api.RunSummary{
			City:      city,
			Trigger:   ingestion.TriggerSchedule,
			StartedAt: s.now().UTC().Format(time.RFC3339),
		}
		result, err := s.syncer.Sync(ctx, city, dates)
		summary.RunID = result.RunID
		summary.Inserted = result.Inserted
		summary.Updated = result.Updated
		summary.FinishedAt = s.now().UTC().Format(time.RFC3339)
		if err != nil {
			summary.Error = err.Error()
			errs = append(errs, err)
		}
		outcomes = append(outcomes, notifications.CityOutcome{
			City:     city,
			Inserted: result.Inserted,
			Updated:  result.Updated,
			Err:      err,
		})
		s.mu.Lock()
		s.runs[city] = summary
		s.mu.Unlock()
	}

	if ctx.Err() == nil {
		if err := s.notifier.NotifyRunFinished(ctx, outcomes, s.now().Sub(started)); err != nil {
			s.logger.Warn("run notification failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}
	return errors.Join(errs...)
}

// Status reports schedule configuration and the last run per city.
func (s *Scheduler) Status() api.SchedulerStatus {
	if s == nil {
		return api.SchedulerStatus{Cities: []string{}, Runs: []api.RunSummary{}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := api.SchedulerStatus{
		Enabled: s.enabled,
		Cities:  append([]string{}, s.cities...),
		Runs:    make([]api.RunSummary, 0, len(s.runs)),
	}
	if !s.next.IsZero() {
		status.NextRun = s.next.Format(time.RFC3339)
	}
	for _, city := range s.cities {
		if run, ok := s.runs[city]; ok {
			status.Runs = append(status.Runs, run)
		}
	}
	return status
}
