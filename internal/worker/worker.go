package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"clipforge/internal/config"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/status"
)

// Worker consumes queued jobs and runs them through the pipeline one at
// a time. A file lock enforces single-instance execution so two workers
// never share the same scratch space.
type Worker struct {
	cfg      *config.Config
	broker   queue.Broker
	runner   *pipeline.Runner
	statuses *status.Store
	notifier notifications.Service
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a worker with initialized dependencies.
func New(cfg *config.Config, broker queue.Broker, runner *pipeline.Runner, statuses *status.Store, notifier notifications.Service, logger *slog.Logger) (*Worker, error) {
	if cfg == nil || broker == nil || runner == nil || statuses == nil {
		return nil, errors.New("worker requires config, broker, runner, and status store")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipforge-worker.lock")
	return &Worker{
		cfg:      cfg,
		broker:   broker,
		runner:   runner,
		statuses: statuses,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "worker"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and begins consuming deliveries.
func (w *Worker) Start(ctx context.Context) error {
	if w.running.Load() {
		return errors.New("worker already running")
	}

	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire worker lock: %w", err)
	}
	if !ok {
		return errors.New("another worker instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	deliveries, err := w.broker.Consume(runCtx)
	if err != nil {
		cancel()
		_ = w.lock.Unlock()
		return fmt.Errorf("consume queue: %w", err)
	}
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for delivery := range deliveries {
			w.handle(runCtx, delivery)
		}
	}()

	w.running.Store(true)
	w.logger.Info("worker started",
		logging.String("queue", w.cfg.Queue.Name),
		logging.String("lock", w.lockPath),
	)
	if err := w.notifier.NotifyWorkerStarted(ctx, w.cfg.Queue.Name); err != nil {
		w.logger.Warn("worker start notification failed", logging.Error(err))
	}
	return nil
}

// Stop halts consumption, waits for the in-flight job, and releases the
// instance lock. An interrupted job is nacked back to the broker.
func (w *Worker) Stop() {
	if !w.running.Load() {
		return
	}

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.wg.Wait()
	if err := w.lock.Unlock(); err != nil {
		w.logger.Warn("failed to release worker lock", logging.Error(err))
	}
	w.running.Store(false)
	w.logger.Info("worker stopped")
}

// Running reports whether the consume loop is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// handle executes one delivery and settles it with the broker.
//
// Non-retryable failures are acked because redelivery would fail the
// same way; the failed status record already tells the submitter.
// Retryable failures are requeued exactly once: a redelivered message
// that fails again is dropped.
func (w *Worker) handle(ctx context.Context, delivery queue.Delivery) {
	req, err := jobs.ParseRequest(delivery.Body, jobs.OpMerge)
	if err != nil {
		w.logger.Error("discarding undecodable job payload", logging.Error(err))
		w.settle(w.logger, delivery.Ack())
		return
	}

	logger := w.logger.With(
		logging.String(logging.FieldJobID, req.JobID),
		logging.String(logging.FieldOperation, req.Operation.String()),
	)
	logger.Info("job received", logging.Bool("redelivered", delivery.Redelivered))

	if req.JobID != "" {
		if doc, loadErr := w.statuses.Load(ctx, req.JobID); loadErr == nil && doc.Status.Terminal() {
			logger.Warn("rerunning job with terminal status record",
				logging.String("status", string(doc.Status)))
		}
	}

	_, runErr := w.runner.Run(ctx, req)
	switch {
	case runErr == nil:
		w.settle(logger, delivery.Ack())
	case !jobs.Retryable(runErr):
		logger.Error("job failed permanently", logging.Error(runErr))
		w.settle(logger, delivery.Ack())
	case delivery.Redelivered:
		logger.Error("job failed after redelivery, dropping", logging.Error(runErr))
		w.settle(logger, delivery.Nack(false))
	default:
		logger.Warn("job failed, requeueing once", logging.Error(runErr))
		w.settle(logger, delivery.Nack(true))
	}
}

func (w *Worker) settle(logger *slog.Logger, err error) {
	if err != nil {
		logger.Warn("failed to settle delivery", logging.Error(err))
	}
}
