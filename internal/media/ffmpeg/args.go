package ffmpeg

import (
	"fmt"
	"math"
	"os"
	"strings"

	"clipforge/internal/jobs"
)

// Merge normalization profile. Every source is re-encoded to this
// shape before concatenation so stream parameters line up.
const (
	mergeWidth  = 1280
	mergeHeight = 720
	mergeFPS    = 30
)

// Overlay clips render at a fixed picture-in-picture size.
const (
	overlayWidth  = 480
	overlayHeight = 270
)

// silentSource generates a silence track for inputs without audio so
// every produced file carries an audio stream.
const silentSource = "anullsrc=channel_layout=stereo:sample_rate=44100"

var normalizeFilter = fmt.Sprintf(
	"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d",
	mergeWidth, mergeHeight, mergeWidth, mergeHeight, mergeFPS)

var encodeArgs = []string{"-c:v", "libx264", "-preset", "fast", "-crf", "23"}

var audioEncodeArgs = []string{"-c:a", "aac", "-b:a", "128k", "-ar", "44100", "-ac", "2"}

// NormalizeArgs re-encodes one merge source to the shared profile,
// synthesizing silence when the source has no audio stream.
func NormalizeArgs(input string, hasAudio bool, output string) []string {
	args := []string{"-y", "-i", input}
	if !hasAudio {
		args = append(args, "-f", "lavfi", "-i", silentSource)
	}
	args = append(args, "-vf", normalizeFilter)
	args = append(args, encodeArgs...)
	args = append(args, audioEncodeArgs...)
	if !hasAudio {
		args = append(args, "-shortest")
	}
	return append(args, output)
}

// ConcatArgs stream-copies the normalized segments listed in listPath
// into a single output.
func ConcatArgs(listPath, output string) []string {
	return []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", output}
}

// WriteConcatList writes the concat demuxer list file for the given
// segment paths.
func WriteConcatList(path string, files []string) error {
	var b strings.Builder
	for _, f := range files {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(f, "'", `'\''`))
		b.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// CaptionArgs draws the caption lines over the input. Sources without
// audio get a silent track so the output always carries one.
func CaptionArgs(input string, spec *jobs.CaptionSpec, hasAudio bool, output string) []string {
	args := []string{"-y", "-i", input}
	if !hasAudio {
		args = append(args, "-f", "lavfi", "-i", silentSource)
	}
	args = append(args, "-vf", strings.Join(drawtextFilters(spec), ","))
	args = append(args, encodeArgs...)
	if hasAudio {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", "aac", "-b:a", "128k", "-shortest")
	}
	return append(args, output)
}

// drawtextFilters builds one drawtext filter per caption line. Lines
// sharing a placement stack downward as a block, each centered on its
// own width.
func drawtextFilters(spec *jobs.CaptionSpec) []string {
	counts := make(map[jobs.Position]int)
	for _, line := range spec.Lines {
		counts[line.Position]++
	}
	seen := make(map[jobs.Position]int)

	filters := make([]string, 0, len(spec.Lines))
	for _, line := range spec.Lines {
		idx := seen[line.Position]
		seen[line.Position]++

		x, y := drawtextPosition(line.Position, idx, counts[line.Position], line.FontSize, spec.LineSpacing)
		f := fmt.Sprintf("drawtext=text='%s':fontsize=%d:fontcolor=%s:x=%s:y=%s",
			escapeDrawtext(line.Text), line.FontSize, line.Color, x, y)
		if spec.Outline {
			f += fmt.Sprintf(":borderw=%d:bordercolor=%s", spec.OutlineWidth, spec.OutlineColor)
		}
		filters = append(filters, f)
	}
	return filters
}

// AddAudioArgs mixes the overlay track into the video's soundtrack.
// When the video has no audio the mix baseline is synthesized silence,
// trimmed to the video's duration.
func AddAudioArgs(video, audio string, spec *jobs.AddAudioSpec, videoHasAudio bool, output string) []string {
	chain := fmt.Sprintf("volume=%s", formatNumber(spec.Volume))
	if spec.Start > 0 {
		ms := int(math.Round(spec.Start * 1000))
		chain += fmt.Sprintf(",adelay=%d:all=1", ms)
	}

	if videoHasAudio {
		graph := fmt.Sprintf("[1:a]%s[ov];[0:a][ov]amix=inputs=2:duration=first[aout]", chain)
		return []string{
			"-y", "-i", video, "-i", audio,
			"-filter_complex", graph,
			"-map", "0:v", "-map", "[aout]",
			"-c:v", "copy", "-c:a", "aac", "-b:a", "128k",
			output,
		}
	}

	graph := fmt.Sprintf("[2:a]%s[ov];[1:a][ov]amix=inputs=2:duration=longest[aout]", chain)
	return []string{
		"-y", "-i", video, "-f", "lavfi", "-i", silentSource, "-i", audio,
		"-filter_complex", graph,
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy", "-c:a", "aac", "-b:a", "128k",
		"-shortest",
		output,
	}
}

// WatermarkArgs composites the image over every frame. Opacity is
// applied through the alpha channel and scale2ref sizes the image as a
// fraction of the frame width, keeping the image's aspect ratio.
func WatermarkArgs(video, image string, spec *jobs.WatermarkSpec, output string) []string {
	x, y := overlayPosition(spec.Position)
	graph := fmt.Sprintf("[1:v]format=rgba,colorchannelmixer=aa=%s[wm0];[wm0][0:v]scale2ref=w=iw*%s:h=ow/mdar[wm][base];[base][wm]overlay=%s:%s[vout]",
		formatNumber(spec.Opacity), formatNumber(spec.Scale), x, y)
	return []string{
		"-y", "-i", video, "-i", image,
		"-filter_complex", graph,
		"-map", "[vout]", "-map", "0:a?",
		"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-c:a", "copy",
		output,
	}
}

// OverlayArgs composites the secondary clip at a fixed size for the
// requested time window. The enable expression is quoted so its commas
// survive filter parsing.
func OverlayArgs(video, overlay string, spec *jobs.OverlaySpec, output string) []string {
	x, y := overlayPosition(spec.Position)
	placement := fmt.Sprintf("overlay=%s:%s", x, y)
	switch {
	case spec.End > 0:
		placement += fmt.Sprintf(":enable='between(t,%s,%s)'", formatNumber(spec.Start), formatNumber(spec.End))
	case spec.Start > 0:
		placement += fmt.Sprintf(":enable='gte(t,%s)'", formatNumber(spec.Start))
	}
	graph := fmt.Sprintf("[1:v]scale=%d:%d[ov];[0:v][ov]%s[vout]", overlayWidth, overlayHeight, placement)
	return []string{
		"-y", "-i", video, "-i", overlay,
		"-filter_complex", graph,
		"-map", "[vout]", "-map", "0:a?",
		"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-c:a", "copy",
		output,
	}
}

// RemuxArgs rewraps the container without touching the streams.
func RemuxArgs(input, output string) []string {
	return []string{"-y", "-i", input, "-c", "copy", output}
}

// EstimateSegmentProgress converts one segment's elapsed seconds into
// a fraction of the whole multi-segment step.
func EstimateSegmentProgress(segment, total int, elapsed, duration float64) float64 {
	if total <= 0 {
		return 0
	}
	per := 1.0 / float64(total)
	done := float64(segment) * per
	if duration > 0 {
		frac := elapsed / duration
		if frac > 1 {
			frac = 1
		}
		if frac > 0 {
			done += frac * per
		}
	}
	if done > 1 {
		done = 1
	}
	return done
}
