package main

import (
	"context"
	"encoding/json"
	"testing"

	"clipforge/internal/storage"
	"clipforge/internal/testsupport"
)

func TestRunCommandExecutesInlineJob(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	objects := testsupport.MustObjectStore(t, env.cfg)
	testsupport.SeedObject(t, objects, "media-in", "raw/clip.mp4", "source media")

	payload := writePayloadFile(t, t.TempDir(), "caption.json",
		`{"job_id":"cli-run1","operation":"caption","input":{"url":"s3://media-in/raw/clip.mp4"},"caption":{"text":"Hello"}}`)

	out, _, err := runCLI(t, []string{"run", payload}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode run output %q: %v", out, err)
	}
	if doc["job_id"] != "cli-run1" {
		t.Fatalf("job_id = %v", doc["job_id"])
	}
	if doc["status"] != "completed" {
		t.Fatalf("status = %v, want completed", doc["status"])
	}
	if doc["progress"] != float64(100) {
		t.Fatalf("progress = %v, want 100", doc["progress"])
	}
	metadata, _ := doc["metadata"].(map[string]any)
	if link, _ := metadata["download_url"].(string); link == "" {
		t.Fatalf("missing download_url in %v", doc)
	}
}

func TestRunCommandReadsStdin(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	objects := testsupport.MustObjectStore(t, env.cfg)
	testsupport.SeedObject(t, objects, "media-in", "raw/source.mp4", "container bytes")

	out, _, err := runCLIWithStdin(t, []string{"run"}, env.configPath, `{"input_key":"raw/source.mp4"}`)
	if err != nil {
		t.Fatalf("run from stdin: %v", err)
	}

	var envelope map[string]any
	if err := json.Unmarshal([]byte(out), &envelope); err != nil {
		t.Fatalf("decode run output %q: %v", out, err)
	}
	if envelope["operation"] != "ffmpeg_copy" {
		t.Fatalf("operation = %v, want ffmpeg_copy", envelope["operation"])
	}
	output, _ := envelope["output"].(map[string]any)
	if output["key"] != "processed/raw/source.mp4" {
		t.Fatalf("output key = %v", output["key"])
	}

	exists, err := objects.Exists(context.Background(), storage.Ref{Bucket: "media-out", Key: "processed/raw/source.mp4"})
	if err != nil || !exists {
		t.Fatalf("remux output missing: exists=%v err=%v", exists, err)
	}
}

func TestRunCommandReportsValidationError(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	_, _, err := runCLIWithStdin(t, []string{"run"}, env.configPath, `{}`)
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, err.Error(), "Missing required fields")
}

func TestRunCommandRejectsUnknownOperationFlag(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	_, _, err := runCLIWithStdin(t, []string{"run", "--operation", "transmogrify"}, env.configPath, `{}`)
	if err == nil {
		t.Fatal("expected unknown operation error")
	}
	requireContains(t, err.Error(), "transmogrify")
}
