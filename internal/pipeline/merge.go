package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"clipforge/internal/jobs"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/status"
)

// runMerge normalizes every source to a shared profile, then joins the
// normalized segments with a concat-demuxer stream copy.
func (r *Runner) runMerge(ctx context.Context, jobID string, spec *jobs.MergeSpec, scratch string) (*Result, error) {
	sources := spec.VideoURLs
	inputs := make([]string, len(sources))
	for i, source := range sources {
		inputs[i] = filepath.Join(scratch, fmt.Sprintf("input_%d%s", i, sourceExt(source)))
	}
	if err := r.fetchInputs(ctx, jobID, jobs.OpMerge, sources, inputs); err != nil {
		return nil, err
	}

	if err := r.writeStage(ctx, jobID, jobs.OpMerge, status.StatusMerging, progressTransformStart, nil); err != nil {
		return nil, err
	}

	total := len(inputs)
	segments := make([]string, total)
	for i, input := range inputs {
		hasAudio := ffprobe.HasAudioStream(ctx, r.ffprobe, input)
		segDuration := r.probeDuration(ctx, input)

		segment := filepath.Join(scratch, fmt.Sprintf("normalized_%d.mp4", i))
		args := ffmpeg.NormalizeArgs(input, hasAudio, segment)
		if err := r.ffmpeg.Run(ctx, args, r.bandProgress(ctx, jobID, jobs.OpMerge, i, total, segDuration)); err != nil {
			return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpMerge), fmt.Sprintf("normalize segment %d", i+1), err)
		}
		segments[i] = segment
	}

	listPath := filepath.Join(scratch, "segments.txt")
	if err := ffmpeg.WriteConcatList(listPath, segments); err != nil {
		return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpMerge), "write concat list", err)
	}

	output := filepath.Join(scratch, "output.mp4")
	if err := r.ffmpeg.Run(ctx, ffmpeg.ConcatArgs(listPath, output), nil); err != nil {
		return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpMerge), "concatenate segments", err)
	}
	return r.publish(ctx, jobID, jobs.OpMerge, output)
}
