package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func writeStubProbe(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestHasAudioStream(t *testing.T) {
	ctx := context.Background()

	withAudio := writeStubProbe(t, "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"audio\"}],\"format\":{}}'\n")
	if !HasAudioStream(ctx, withAudio, "clip.mp4") {
		t.Fatal("expected audio stream to be detected")
	}

	videoOnly := writeStubProbe(t, "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"video\"}],\"format\":{}}'\n")
	if HasAudioStream(ctx, videoOnly, "clip.mp4") {
		t.Fatal("expected no audio stream")
	}

	failing := writeStubProbe(t, "#!/bin/sh\nexit 1\n")
	if !HasAudioStream(ctx, failing, "clip.mp4") {
		t.Fatal("probe failure should report audio present")
	}
}
