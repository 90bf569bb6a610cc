package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"clipforge/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Queue broker", statusError, "not reachable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Queue broker:", "[ERROR] not reachable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Object storage", statusOK, "reachable", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestToolStatusLine(t *testing.T) {
	ready := toolStatusLine(deps.Status{Name: "FFmpeg", Command: "ffmpeg", Available: true}, false)
	if !strings.Contains(ready, "[OK] Ready (command: ffmpeg)") {
		t.Fatalf("unexpected ready line: %q", ready)
	}

	missing := toolStatusLine(deps.Status{Name: "FFmpeg", Detail: `binary "ffmpeg" not found`}, false)
	if !strings.Contains(missing, "[ERROR]") {
		t.Fatalf("expected error for missing required tool: %q", missing)
	}

	optional := toolStatusLine(deps.Status{Name: "Downloader", Optional: true}, false)
	if !strings.Contains(optional, "[WARN] not available") {
		t.Fatalf("expected warn for missing optional tool: %q", optional)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
