package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/storage"
)

// Remux envelope operation labels. Clients branch on these to tell a
// clean container copy from the degraded paths.
const (
	remuxOpFFmpeg   = "ffmpeg_copy"
	remuxOpFallback = "s3_copy_fallback"
	remuxOpCopy     = "s3_copy"
)

// RemuxObject names one side of a remux copy.
type RemuxObject struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// RemuxResult is the synchronous remux response envelope. Operation is
// "ffmpeg_copy" for a clean container copy, "s3_copy_fallback" when the
// tool failed and the object was copied server side (Error carries the
// tool failure text), or "s3_copy" when no tool is available.
type RemuxResult struct {
	Operation string      `json:"operation"`
	Error     string      `json:"error,omitempty"`
	Input     RemuxObject `json:"input"`
	Output    RemuxObject `json:"output"`
}

func (r *Runner) runRemux(ctx context.Context, spec *jobs.RemuxSpec) (*Result, error) {
	if spec == nil {
		return nil, jobs.Wrap(jobs.ErrValidation, "admission", string(jobs.OpRemux), "remux payload is required", nil)
	}
	spec.ApplyDefaults(r.cfg.Storage.InputBucket, r.cfg.Storage.OutputBucket)
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldOperation, string(jobs.OpRemux)))
	src := storage.Ref{Bucket: spec.InputBucket, Key: spec.InputKey}
	dst := storage.Ref{Bucket: spec.OutputBucket, Key: spec.OutputKey}
	envelope := &RemuxResult{
		Input:  RemuxObject{Bucket: src.Bucket, Key: src.Key},
		Output: RemuxObject{Bucket: dst.Bucket, Key: dst.Key},
	}

	if r.ffmpeg == nil {
		if err := r.objects.Copy(ctx, src, dst); err != nil {
			return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpRemux), "copy object", err)
		}
		envelope.Operation = remuxOpCopy
		logger.Info("remux served by object copy", logging.String("output", dst.String()))
		return &Result{Operation: jobs.OpRemux, Output: dst, Remux: envelope}, nil
	}

	if err := r.remuxWithTool(ctx, src, dst); err != nil {
		// Scratch and download failures are terminal. Only the container
		// copy itself and the upload fall back to a server side copy.
		if errors.Is(err, jobs.ErrFetch) || errors.Is(err, jobs.ErrCapability) {
			return nil, err
		}
		logger.Warn("remux tool path failed, copying object", logging.Error(err))
		if copyErr := r.objects.Copy(ctx, src, dst); copyErr != nil {
			return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpRemux), "fallback copy", copyErr)
		}
		envelope.Operation = remuxOpFallback
		envelope.Error = err.Error()
		return &Result{Operation: jobs.OpRemux, Output: dst, Remux: envelope}, nil
	}

	envelope.Operation = remuxOpFFmpeg
	logger.Info("remux completed", logging.String("output", dst.String()))
	return &Result{Operation: jobs.OpRemux, Output: dst, Remux: envelope}, nil
}

// remuxWithTool downloads the object, runs a container copy, and
// uploads the result.
func (r *Runner) remuxWithTool(ctx context.Context, src, dst storage.Ref) error {
	if err := os.MkdirAll(r.cfg.Paths.ScratchDir, 0o755); err != nil {
		return jobs.Wrap(jobs.ErrCapability, "prepare", string(jobs.OpRemux), "create scratch root", err)
	}
	scratch, err := os.MkdirTemp(r.cfg.Paths.ScratchDir, "remux-*")
	if err != nil {
		return jobs.Wrap(jobs.ErrCapability, "prepare", string(jobs.OpRemux), "create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	inPath := filepath.Join(scratch, "input")
	outPath := filepath.Join(scratch, "output.mp4")
	if err := r.objects.Download(ctx, src, inPath); err != nil {
		return jobs.Wrap(jobs.ErrFetch, "download", string(jobs.OpRemux), "download input object", err)
	}
	if err := r.ffmpeg.Run(ctx, ffmpeg.RemuxArgs(inPath, outPath), nil); err != nil {
		return fmt.Errorf("remux %s: %w", src, err)
	}
	if err := r.objects.Upload(ctx, outPath, dst, storage.ContentTypeFor(dst.Key)); err != nil {
		return fmt.Errorf("upload %s: %w", dst, err)
	}
	return nil
}
