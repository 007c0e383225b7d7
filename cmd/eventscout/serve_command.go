package main

import (
	"github.com/spf13/cobra"

	"eventscout/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and scheduler in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level := ""
			if ctx.logLevel != nil {
				level = *ctx.logLevel
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: level, Once: once})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Ingest every configured city once and exit")
	return cmd
}
