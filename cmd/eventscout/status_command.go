package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"eventscout/internal/config"
	"eventscout/internal/preflight"
	"eventscout/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipLLM bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check directories, database, and model endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{
				Checks:     preflight.RunAll(cmd.Context(), cfg, preflight.Options{SkipLLM: skipLLM}),
				LLMSkipped: skipLLM,
				Scheduler: schedulerView{
					Enabled:     cfg.Ingest.SchedulerEnabled,
					RunAt:       cfg.Ingest.RunAt,
					Timezone:    cfg.Ingest.Timezone,
					Cities:      cfg.IngestCities(),
					WindowWeeks: cfg.Ingest.WindowWeeks,
				},
			}
			if stats, err := loadStats(cmd.Context(), cfg); err == nil {
				report.Stats = &stats
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatusReport(report, shouldColorize(out)))

			if preflight.Failed(report.Checks) {
				return errors.New("one or more readiness checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Skip model endpoint checks")
	return cmd
}

func loadStats(ctx context.Context, cfg *config.Config) (store.Stats, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return store.Stats{}, err
	}
	defer st.Close()
	return st.Stats(ctx)
}
