package daemonrun

import (
	"fmt"
	"log/slog"

	"eventscout/internal/config"
	"eventscout/internal/discovery"
	"eventscout/internal/ingestion"
	"eventscout/internal/metrics"
	"eventscout/internal/notifications"
	"eventscout/internal/store"
	"eventscout/internal/verification"
)

// Components is the fully wired ingestion stack shared by the daemon and the CLI.
type Components struct {
	Store        *store.Store
	Metrics      *metrics.Metrics
	Discovery    *discovery.Client
	Verifier     *verification.Client
	Orchestrator *ingestion.Orchestrator
	Notifier     notifications.Service
}

// NewComponents opens the store and builds both LLM clients and the
// orchestrator. Missing credentials are not an error here; runs report
// them as unavailable.
func NewComponents(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	m := metrics.New()

	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	primary, err := discovery.NewClient(cfg.PrimaryLLM(), logger, discovery.WithMetrics(m))
	if err != nil {
		st.Close()
		return nil, err
	}
	verifier, err := verification.NewClient(cfg.VerificationLLM(), verification.PolicyFromConfig(cfg), logger,
		verification.WithMetrics(m))
	if err != nil {
		st.Close()
		return nil, err
	}

	orch := ingestion.New(primary, verifier, st, logger,
		ingestion.WithWorkers(cfg.Verification.Workers),
		ingestion.WithLockDir(cfg.CityLockDir()),
		ingestion.WithMetrics(m),
	)
	return &Components{
		Store:        st,
		Metrics:      m,
		Discovery:    primary,
		Verifier:     verifier,
		Orchestrator: orch,
		Notifier:     notifications.NewService(cfg),
	}, nil
}

// Close releases the store.
func (c *Components) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
