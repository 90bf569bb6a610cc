package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/deps"
	"clipforge/internal/fetch"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/notifications"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

// Milestone progress values for the async job lifecycle. Downloads fill
// the band from progressDownloadStart over progressDownloadSpan, live
// transform timestamps fill progressTransformStart over
// progressTransformSpan, and the upload write pins the last
// pre-terminal value.
const (
	progressAdmitted       = 5.0
	progressDownloadStart  = 10.0
	progressDownloadSpan   = 25.0
	progressTransformStart = 45.0
	progressTransformSpan  = 45.0
	progressUploading      = 95.0
	progressDone           = 100.0
)

// Result is the terminal outcome of a successfully executed job.
type Result struct {
	JobID       string
	Operation   jobs.Operation
	Output      storage.Ref
	DownloadURL string

	// Remux carries the synchronous response envelope for remux jobs
	// and is nil for every other operation.
	Remux *RemuxResult
}

// Runner executes job requests against the configured stores and tools.
type Runner struct {
	cfg      *config.Config
	objects  storage.ObjectStore
	statuses *status.Store
	fetcher  *fetch.Fetcher
	ffmpeg   *ffmpeg.Client
	ffprobe  string
	notifier notifications.Service
	logger   *slog.Logger
}

// New builds a runner over the shared stores. Missing tool binaries do
// not fail construction: transform operations report a capability error
// at execution time and remux degrades to an object store copy.
func New(cfg *config.Config, objects storage.ObjectStore, statuses *status.Store, notifier notifications.Service, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if objects == nil {
		return nil, errors.New("pipeline: object store is required")
	}
	if statuses == nil {
		return nil, errors.New("pipeline: status store is required")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	runner := &Runner{
		cfg:      cfg,
		objects:  objects,
		statuses: statuses,
		fetcher:  fetch.New(objects, cfg, logger),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
	if binary, err := deps.LocateTool(cfg.FFmpegBinary()); err == nil {
		client, clientErr := ffmpeg.New(binary)
		if clientErr != nil {
			return nil, clientErr
		}
		runner.ffmpeg = client
	}
	if binary, err := deps.LocateTool(cfg.FFprobeBinary()); err == nil {
		runner.ffprobe = binary
	}
	return runner, nil
}

// FFmpegAvailable reports whether a usable ffmpeg binary was located.
func (r *Runner) FFmpegAvailable() bool {
	return r.ffmpeg != nil
}

// Run executes a request to completion. Remux is synchronous and writes
// no status records; every other operation records lifecycle transitions
// ending in a terminal completed or failed document.
func (r *Runner) Run(ctx context.Context, req *jobs.Request) (*Result, error) {
	if req == nil {
		return nil, jobs.Wrap(jobs.ErrValidation, "admission", "", "empty request", nil)
	}
	if req.Operation == jobs.OpRemux {
		return r.runRemux(ctx, req.Remux)
	}

	if req.JobID == "" {
		id, err := jobs.NewID()
		if err != nil {
			return nil, jobs.Wrap(jobs.ErrCapability, "admission", string(req.Operation), "generate job id", err)
		}
		req.JobID = id
	}
	ctx = jobs.WithJobID(ctx, req.JobID)
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldOperation, string(req.Operation)))

	started := time.Now()
	logger.Info("job started")

	result, err := r.execute(ctx, req, logger)
	if err != nil {
		r.recordFailure(ctx, req.JobID, req.Operation, err, logger)
		return nil, err
	}

	logger.Info("job completed",
		logging.Duration("elapsed", time.Since(started)),
		logging.String("output", result.Output.String()))
	if notifyErr := r.notifier.NotifyJobCompleted(ctx, req.JobID, req.Operation, result.DownloadURL); notifyErr != nil {
		logger.Warn("completion notification failed", logging.Error(notifyErr))
	}
	return result, nil
}

func (r *Runner) execute(ctx context.Context, req *jobs.Request, logger *slog.Logger) (*Result, error) {
	meta := map[string]string{"inputs": strings.Join(req.InputRefs(), ", ")}
	if err := r.writeStage(ctx, req.JobID, req.Operation, status.StatusProcessing, progressAdmitted, meta); err != nil {
		return nil, err
	}

	if r.ffmpeg == nil {
		return nil, jobs.Wrap(jobs.ErrCapability, "transform", string(req.Operation), "ffmpeg binary is not available", nil)
	}

	scratch, err := r.prepareScratch(req.JobID)
	if err != nil {
		return nil, err
	}

	var result *Result
	switch req.Operation {
	case jobs.OpMerge:
		result, err = r.runMerge(ctx, req.JobID, req.Merge, scratch)
	case jobs.OpCaption:
		result, err = r.runCaption(ctx, req.JobID, req.Caption, scratch)
	case jobs.OpAddAudio:
		result, err = r.runAddAudio(ctx, req.JobID, req.AddAudio, scratch)
	case jobs.OpWatermark:
		result, err = r.runWatermark(ctx, req.JobID, req.Watermark, scratch)
	case jobs.OpOverlay:
		result, err = r.runOverlay(ctx, req.JobID, req.Overlay, scratch)
	default:
		err = jobs.Wrap(jobs.ErrValidation, "admission", string(req.Operation), fmt.Sprintf("unsupported operation %q", req.Operation), nil)
	}
	if err != nil {
		return nil, err
	}

	// Failed attempts keep their scratch for inspection; the next
	// attempt recreates the directory.
	if rmErr := os.RemoveAll(scratch); rmErr != nil {
		logger.Warn("scratch cleanup failed", logging.Error(rmErr))
	}
	return result, nil
}

// writeStage persists one lifecycle transition before the stage's work
// begins.
func (r *Runner) writeStage(ctx context.Context, jobID string, op jobs.Operation, st status.Status, progress float64, meta map[string]string) error {
	change := status.Change{
		Operation: string(op),
		Status:    st,
		Progress:  progress,
		Metadata:  meta,
	}
	if _, err := r.statuses.Update(ctx, jobID, change); err != nil {
		return jobs.Wrap(jobs.ErrPersistence, "status", string(op), fmt.Sprintf("record %s status", st), err)
	}
	return nil
}

// recordFailure writes the terminal failed document and notifies. The
// write must land even when the job context was already canceled, and
// its own errors are logged rather than returned so the original
// failure stays visible.
func (r *Runner) recordFailure(ctx context.Context, jobID string, op jobs.Operation, jobErr error, logger *slog.Logger) {
	logger.Error("job failed", logging.Error(jobErr), logging.Bool("retryable", jobs.Retryable(jobErr)))

	persistCtx := context.WithoutCancel(ctx)
	change := status.Change{
		Operation: string(op),
		Status:    status.StatusFailed,
		Progress:  progressDone,
		Error:     jobs.Message(jobErr),
	}
	if _, err := r.statuses.Update(persistCtx, jobID, change); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	if err := r.notifier.NotifyJobFailed(persistCtx, jobID, op, jobs.Message(jobErr)); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

// prepareScratch resets the per-job scratch directory so redelivered
// retries never see a prior attempt's partial artifacts.
func (r *Runner) prepareScratch(jobID string) (string, error) {
	dir := filepath.Join(r.cfg.Paths.ScratchDir, "jobs", jobID)
	if err := os.RemoveAll(dir); err != nil {
		return "", jobs.Wrap(jobs.ErrCapability, "prepare", "", "reset scratch directory", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", jobs.Wrap(jobs.ErrCapability, "prepare", "", "create scratch directory", err)
	}
	return dir, nil
}

// fetchInputs downloads each source to its destination path, advancing
// the download band as inputs complete.
func (r *Runner) fetchInputs(ctx context.Context, jobID string, op jobs.Operation, sources, dests []string) error {
	if err := r.writeStage(ctx, jobID, op, status.StatusDownloading, progressDownloadStart, nil); err != nil {
		return err
	}
	for i, source := range sources {
		if err := r.fetcher.Fetch(ctx, source, dests[i]); err != nil {
			return err
		}
		p := progressDownloadStart + progressDownloadSpan*float64(i+1)/float64(len(sources))
		if err := r.writeStage(ctx, jobID, op, status.StatusDownloading, p, nil); err != nil {
			return err
		}
	}
	return nil
}

// bandProgress maps live transform timestamps onto the transform band,
// throttled to whole percents. Push failures are swallowed so progress
// reporting never fails a running transform.
func (r *Runner) bandProgress(ctx context.Context, jobID string, op jobs.Operation, segment, total int, duration float64) func(ffmpeg.Progress) {
	if duration <= 0 {
		return nil
	}
	st := status.Status(op.TransformLabel())
	last := -1
	return func(p ffmpeg.Progress) {
		frac := ffmpeg.EstimateSegmentProgress(segment, total, p.Seconds, duration)
		val := progressTransformStart + frac*progressTransformSpan
		if int(val) <= last {
			return
		}
		last = int(val)
		_, _ = r.statuses.Update(ctx, jobID, status.Change{
			Operation: string(op),
			Status:    st,
			Progress:  val,
		})
	}
}

// publish uploads the transformed file, issues its presigned download
// URL, and writes the terminal completed document.
func (r *Runner) publish(ctx context.Context, jobID string, op jobs.Operation, localPath string) (*Result, error) {
	if err := r.writeStage(ctx, jobID, op, status.StatusUploading, progressUploading, nil); err != nil {
		return nil, err
	}

	ref := storage.Ref{
		Bucket: r.cfg.Storage.OutputBucket,
		Key:    fmt.Sprintf("outputs/%s/%s.mp4", jobID, op),
	}
	if err := r.objects.Upload(ctx, localPath, ref, storage.ContentTypeFor(ref.Key)); err != nil {
		return nil, jobs.Wrap(jobs.ErrPersistence, "upload", string(op), "store output object", err)
	}

	ttl := r.cfg.PresignTTL()
	downloadURL, err := r.objects.Presign(ctx, ref, ttl)
	if err != nil {
		return nil, jobs.Wrap(jobs.ErrPersistence, "upload", string(op), "presign download URL", err)
	}

	meta := map[string]string{
		"output_bucket":       ref.Bucket,
		"output_key":          ref.Key,
		"download_url":        downloadURL,
		"download_expires_in": strconv.Itoa(int(ttl.Seconds())),
	}
	if err := r.writeStage(ctx, jobID, op, status.StatusCompleted, progressDone, meta); err != nil {
		return nil, err
	}
	return &Result{JobID: jobID, Operation: op, Output: ref, DownloadURL: downloadURL}, nil
}

// probeDuration returns the file's duration in seconds, or zero when it
// cannot be determined.
func (r *Runner) probeDuration(ctx context.Context, path string) float64 {
	if r.ffprobe == "" {
		return 0
	}
	result, err := ffprobe.Inspect(ctx, r.ffprobe, path)
	if err != nil {
		return 0
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration < 0 {
		return 0
	}
	return duration
}

// sourceExt guesses a scratch file extension from the source URL path.
func sourceExt(source string) string {
	cleaned := source
	if parsed, err := url.Parse(source); err == nil && parsed.Path != "" {
		cleaned = parsed.Path
	}
	ext := path.Ext(cleaned)
	if ext == "" || len(ext) > 5 {
		return ".mp4"
	}
	return ext
}
