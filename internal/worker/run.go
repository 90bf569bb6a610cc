package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"log/slog"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/pipeline"
	"clipforge/internal/preflight"
	"clipforge/internal/queue"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

// Run wires the worker runtime against the configured broker and blocks
// until the context ends or the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cfg.QueueConfigured() {
		return fmt.Errorf("queue backend %q cannot feed a worker", cfg.Queue.Backend)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logToolSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "clipforge-worker.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	broker, err := queue.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer broker.Close()

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

	w, err := New(cfg, broker, runner, statuses, notifier, logger)
	if err != nil {
		return err
	}
	if err := w.Start(signalCtx); err != nil {
		return err
	}
	defer w.Stop()

	<-signalCtx.Done()
	logger.Info("worker shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logToolSnapshot(logger *slog.Logger, cfg *config.Config) {
	args := make([]any, 0, 6)
	for _, tool := range preflight.CheckTools(cfg) {
		prefix := strings.ToLower(tool.Name)
		args = append(args,
			logging.Bool(prefix+"_available", tool.Available),
			logging.String(prefix+"_binary", tool.Command),
		)
	}
	logger.Info("tool snapshot", args...)
}
