package main

import (
	"fmt"
	"path/filepath"

	"log/slog"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/dispatch"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/pipeline"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var operationFlag string
	cmd := &cobra.Command{
		Use:   "run [payload.json]",
		Short: "Execute one job in this process",
		Long: "Execute a single job payload inline and print the resulting document as JSON.\n" +
			"Reads the payload from the given file, or from stdin when the argument is omitted or \"-\".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			fallback := jobs.OpRemux
			if operationFlag != "" {
				fallback, err = jobs.ParseOperation(operationFlag)
				if err != nil {
					return err
				}
			}

			body, err := readJobPayload(cmd, args)
			if err != nil {
				return err
			}
			req, err := jobs.ParseRequest(body, fallback)
			if err != nil {
				return fmt.Errorf("%s", jobs.Message(err))
			}

			logger, err := fileOnlyLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			objects, err := storage.FromConfig(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open object store: %w", err)
			}
			statuses := status.NewStore(objects, cfg.StatusBucketName())
			notifier := notifications.NewService(cfg)
			runner, err := pipeline.New(cfg, objects, statuses, notifier, logger)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}

			dispatcher := dispatch.New(cfg, nil, runner, statuses, logger)
			receipt, err := dispatcher.Submit(cmd.Context(), req, "")
			if err != nil {
				return fmt.Errorf("%s", jobs.Message(err))
			}
			if receipt.Remux != nil {
				return writeJSON(cmd, receipt.Remux)
			}
			return writeJSON(cmd, receipt.Document)
		},
	}
	cmd.Flags().StringVar(&operationFlag, "operation", "", "Operation to assume when the payload omits one")
	return cmd
}

// fileOnlyLogger keeps stdout clean for the result document. Pipeline
// logs go to the configured log file, or nowhere without a log dir.
func fileOnlyLogger(cfg *config.Config) (*slog.Logger, error) {
	if cfg.Paths.LogDir == "" {
		return logging.NewNop(), nil
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "clipforge.log")
	return logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
}
