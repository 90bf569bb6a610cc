package pipeline

import (
	"context"
	"path/filepath"

	"clipforge/internal/jobs"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/status"
)

func (r *Runner) runCaption(ctx context.Context, jobID string, spec *jobs.CaptionSpec, scratch string) (*Result, error) {
	input := filepath.Join(scratch, "input"+sourceExt(spec.Input))
	if err := r.fetchInputs(ctx, jobID, jobs.OpCaption, []string{spec.Input}, []string{input}); err != nil {
		return nil, err
	}

	if err := r.writeStage(ctx, jobID, jobs.OpCaption, status.StatusTransforming, progressTransformStart, nil); err != nil {
		return nil, err
	}
	hasAudio := ffprobe.HasAudioStream(ctx, r.ffprobe, input)
	duration := r.probeDuration(ctx, input)

	output := filepath.Join(scratch, "output.mp4")
	args := ffmpeg.CaptionArgs(input, spec, hasAudio, output)
	if err := r.ffmpeg.Run(ctx, args, r.bandProgress(ctx, jobID, jobs.OpCaption, 0, 1, duration)); err != nil {
		return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpCaption), "render captions", err)
	}
	return r.publish(ctx, jobID, jobs.OpCaption, output)
}

func (r *Runner) runAddAudio(ctx context.Context, jobID string, spec *jobs.AddAudioSpec, scratch string) (*Result, error) {
	video := filepath.Join(scratch, "video"+sourceExt(spec.Video))
	audio := filepath.Join(scratch, "audio"+sourceExt(spec.Audio))
	if err := r.fetchInputs(ctx, jobID, jobs.OpAddAudio, []string{spec.Video, spec.Audio}, []string{video, audio}); err != nil {
		return nil, err
	}

	if err := r.writeStage(ctx, jobID, jobs.OpAddAudio, status.StatusTransforming, progressTransformStart, nil); err != nil {
		return nil, err
	}
	videoHasAudio := ffprobe.HasAudioStream(ctx, r.ffprobe, video)
	duration := r.probeDuration(ctx, video)

	output := filepath.Join(scratch, "output.mp4")
	args := ffmpeg.AddAudioArgs(video, audio, spec, videoHasAudio, output)
	if err := r.ffmpeg.Run(ctx, args, r.bandProgress(ctx, jobID, jobs.OpAddAudio, 0, 1, duration)); err != nil {
		return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpAddAudio), "mix audio track", err)
	}
	return r.publish(ctx, jobID, jobs.OpAddAudio, output)
}

func (r *Runner) runWatermark(ctx context.Context, jobID string, spec *jobs.WatermarkSpec, scratch string) (*Result, error) {
	video := filepath.Join(scratch, "video"+sourceExt(spec.Video))
	image := filepath.Join(scratch, "watermark"+sourceExt(spec.Image))
	if err := r.fetchInputs(ctx, jobID, jobs.OpWatermark, []string{spec.Video, spec.Image}, []string{video, image}); err != nil {
		return nil, err
	}

	if err := r.writeStage(ctx, jobID, jobs.OpWatermark, status.StatusTransforming, progressTransformStart, nil); err != nil {
		return nil, err
	}
	duration := r.probeDuration(ctx, video)

	output := filepath.Join(scratch, "output.mp4")
	args := ffmpeg.WatermarkArgs(video, image, spec, output)
	if err := r.ffmpeg.Run(ctx, args, r.bandProgress(ctx, jobID, jobs.OpWatermark, 0, 1, duration)); err != nil {
		return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpWatermark), "composite watermark", err)
	}
	return r.publish(ctx, jobID, jobs.OpWatermark, output)
}

func (r *Runner) runOverlay(ctx context.Context, jobID string, spec *jobs.OverlaySpec, scratch string) (*Result, error) {
	video := filepath.Join(scratch, "video"+sourceExt(spec.Video))
	overlay := filepath.Join(scratch, "overlay"+sourceExt(spec.Overlay))
	if err := r.fetchInputs(ctx, jobID, jobs.OpOverlay, []string{spec.Video, spec.Overlay}, []string{video, overlay}); err != nil {
		return nil, err
	}

	if err := r.writeStage(ctx, jobID, jobs.OpOverlay, status.StatusTransforming, progressTransformStart, nil); err != nil {
		return nil, err
	}
	duration := r.probeDuration(ctx, video)

	output := filepath.Join(scratch, "output.mp4")
	args := ffmpeg.OverlayArgs(video, overlay, spec, output)
	if err := r.ffmpeg.Run(ctx, args, r.bandProgress(ctx, jobID, jobs.OpOverlay, 0, 1, duration)); err != nil {
		return nil, jobs.Wrap(jobs.ErrTransform, "transform", string(jobs.OpOverlay), "composite overlay video", err)
	}
	return r.publish(ctx, jobID, jobs.OpOverlay, output)
}
