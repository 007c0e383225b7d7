package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"eventscout/internal/api"
	"eventscout/internal/config"
	"eventscout/internal/logging"
	"eventscout/internal/metrics"
	"eventscout/internal/notifications"
	"eventscout/internal/store"
)

// Endpoint is anything that can report whether its credentials are set.
type Endpoint interface {
	Configured() bool
}

// Dependencies are the collaborators the daemon coordinates. Only Store is
// required; a daemon without an ingestor serves queries only.
type Dependencies struct {
	Store    *store.Store
	Ingestor Syncer
	Primary  Endpoint
	Verifier api.Rechecker
	Metrics  *metrics.Metrics
	Notifier notifications.Service
}

// Daemon coordinates the scheduler and API server and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	primary   Endpoint
	verifier  api.Rechecker
	metrics   *metrics.Metrics
	svc       *api.EventService
	scheduler *Scheduler
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    deps.Store,
		primary:  deps.Primary,
		verifier: deps.Verifier,
		metrics:  deps.Metrics,
		lockPath: cfg.DaemonLockPath(),
		lock:     flock.New(cfg.DaemonLockPath()),
	}
	d.svc = api.NewEventService(deps.Store, deps.Ingestor, deps.Verifier,
		api.WithDefaultCity(cfg.Ingest.DefaultCity),
		api.WithLocation(cfg.Location()),
	)
	if deps.Ingestor != nil {
		d.scheduler = NewScheduler(cfg, deps.Ingestor, logger, WithNotifier(deps.Notifier))
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, starts the API server and the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another eventscout daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel

	if d.scheduler != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.scheduler.Run(runCtx)
		}()
	}

	d.running.Store(true)
	d.logger.Info("eventscout daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddr()),
		logging.Bool("scheduler_enabled", d.cfg.Ingest.SchedulerEnabled),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("eventscout daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the address the API server listens on, or "" when disabled.
func (d *Daemon) APIAddr() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

// Scheduler exposes the daemon's scheduler; nil when ingestion is not wired.
func (d *Daemon) Scheduler() *Scheduler {
	return d.scheduler
}

// Status returns health information for the API and CLI.
func (d *Daemon) Status(ctx context.Context) api.HealthStatus {
	status := api.HealthStatus{
		Status:                 "ok",
		Database:               "ok",
		PrimaryConfigured:      d.primary != nil && d.primary.Configured(),
		VerificationConfigured: d.verifier != nil && d.verifier.Configured(),
		Scheduler:              d.scheduler.Status(),
	}
	if err := d.store.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Database = err.Error()
		return status
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		converted := api.FromStats(stats)
		status.Store = &converted
	}
	if !status.PrimaryConfigured || !status.VerificationConfigured {
		status.Status = "degraded"
	}
	return status
}
