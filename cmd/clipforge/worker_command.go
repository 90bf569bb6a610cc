package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/logging"
	"clipforge/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a queue worker",
		Long:  "Consume queued jobs from the configured broker and execute them until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return worker.Run(cmd.Context(), cfg, logger)
		},
	}
}
