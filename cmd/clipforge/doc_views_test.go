package main

import (
	"strings"
	"testing"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"queued":      "Queued",
		"failed":      "Failed",
		"ffmpeg_copy": "Ffmpeg Copy",
		"add-audio":   "Add-audio",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatDisplayTime(t *testing.T) {
	if got := formatDisplayTime("2026-03-01T12:30:45Z"); got != "2026-03-01 12:30:45" {
		t.Fatalf("formatDisplayTime = %q", got)
	}
	if got := formatDisplayTime("not a timestamp"); got != "not a timestamp" {
		t.Fatalf("expected passthrough for unparseable value, got %q", got)
	}
}

func TestBuildDocumentRowsIncludesMetadata(t *testing.T) {
	payload := map[string]any{
		"job_id":    "doc1",
		"operation": "caption",
		"status":    "completed",
		"progress":  float64(100),
		"metadata": map[string]any{
			"download_url": "http://example.com/a",
			"output_key":   "outputs/doc1/caption.mp4",
		},
	}
	rows := buildDocumentRows(payload)

	flat := make([]string, 0, len(rows))
	for _, row := range rows {
		flat = append(flat, strings.Join(row, "="))
	}
	joined := strings.Join(flat, "\n")
	requireContains(t, joined, "Job=doc1")
	requireContains(t, joined, "Status=Completed")
	requireContains(t, joined, "Progress=100.0%")
	requireContains(t, joined, "Download Url=http://example.com/a")
}

func TestBuildRemuxRowsJoinsObjectRefs(t *testing.T) {
	payload := map[string]any{
		"operation": "ffmpeg_copy",
		"input":     map[string]any{"bucket": "media-in", "key": "raw/a.mp4"},
		"output":    map[string]any{"bucket": "media-out", "key": "processed/raw/a.mp4"},
	}
	rows := buildRemuxRows(payload)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", len(rows), rows)
	}
	if rows[1][1] != "media-in/raw/a.mp4" {
		t.Fatalf("input ref = %q", rows[1][1])
	}
	if rows[2][1] != "media-out/processed/raw/a.mp4" {
		t.Fatalf("output ref = %q", rows[2][1])
	}
}
