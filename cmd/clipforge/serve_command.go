package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"clipforge/internal/dispatch"
	"clipforge/internal/httpapi"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long:  "Run the HTTP gateway that admits jobs, serves status documents, and streams local artifacts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeProcess(cmd.Context(), ctx)
		},
	}
}

func runServeProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "clipforge.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var broker queue.Broker
	if cfg.QueueConfigured() {
		broker, err = queue.FromConfig(cfg)
		if err != nil {
			logger.Error("connect queue", logging.Error(err))
			return err
		}
		defer broker.Close()
	}

	objects, err := storage.FromConfig(signalCtx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	statuses := status.NewStore(objects, cfg.StatusBucketName())

	notifier := notifications.NewService(cfg)
	runner, err := pipeline.New(cfg, objects, statuses, notifier, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	dispatcher := dispatch.New(cfg, broker, runner, statuses, logger)
	server, err := httpapi.New(cfg, dispatcher, runner, statuses, objects, logger)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	if err := server.Start(signalCtx); err != nil {
		return err
	}
	defer server.Stop()

	<-signalCtx.Done()
	logger.Info("clipforge gateway shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
