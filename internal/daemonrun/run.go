package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"eventscout/internal/config"
	"eventscout/internal/daemon"
	"eventscout/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Once runs every configured city a single time and exits instead of
	// serving the API and waiting for the schedule.
	Once bool
}

// Run starts the eventscout daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	loggerOpts, err := logging.DaemonOptions(level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return err
	}
	logger, err := logging.New(loggerOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "eventscout*.log",
		filepath.Join(cfg.Paths.LogDir, logging.DaemonLogName))

	components, err := NewComponents(cfg, logger)
	if err != nil {
		logger.Error("initialize components", logging.Error(err))
		return err
	}
	defer components.Close()

	if opts.Once {
		scheduler := daemon.NewScheduler(cfg, components.Orchestrator, logger, daemon.WithNotifier(components.Notifier))
		if err := scheduler.RunOnce(signalCtx); err != nil {
			return fmt.Errorf("ingestion run: %w", err)
		}
		logger.Info("single ingestion pass complete")
		return nil
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "eventscoutd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Store:    components.Store,
		Ingestor: components.Orchestrator,
		Primary:  components.Discovery,
		Verifier: components.Verifier,
		Metrics:  components.Metrics,
		Notifier: components.Notifier,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other eventscoutd is running"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("eventscout daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	primary := cfg.PrimaryLLM()
	verify := cfg.VerificationLLM()
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("database_driver", cfg.Database.Driver),
		logging.String("primary_protocol", primary.Protocol),
		logging.String("primary_model", primary.Model),
		logging.Bool("primary_key_present", primary.Configured()),
		logging.String("verification_protocol", verify.Protocol),
		logging.String("verification_model", verify.Model),
		logging.Bool("verification_key_present", verify.Configured()),
		logging.Int("verification_workers", cfg.Verification.Workers),
		logging.Any("cities", cfg.IngestCities()),
		logging.String("run_at", cfg.Ingest.RunAt),
		logging.String("timezone", cfg.Ingest.Timezone),
		logging.Bool("scheduler_enabled", cfg.Ingest.SchedulerEnabled),
	)
}
