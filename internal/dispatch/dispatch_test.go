package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/dispatch"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/status"
	"clipforge/internal/storage"
	"clipforge/internal/testsupport"
)

func newDispatcher(t *testing.T, cfg *config.Config, broker queue.Broker) (*dispatch.Dispatcher, storage.ObjectStore, *status.Store) {
	t.Helper()

	objects := testsupport.MustObjectStore(t, cfg)
	statuses := testsupport.MustStatusStore(t, cfg, objects)
	runner, err := pipeline.New(cfg, objects, statuses, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return dispatch.New(cfg, broker, runner, statuses, logging.NewNop()), objects, statuses
}

func parseRequest(t *testing.T, payload string) *jobs.Request {
	t.Helper()

	req, err := jobs.ParseRequest([]byte(payload), jobs.OpRemux)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	return req
}

func receiveDelivery(t *testing.T, broker *queue.Memory) queue.Delivery {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deliveries, err := broker.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case delivery := <-deliveries:
		return delivery
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery arrived")
		return queue.Delivery{}
	}
}

func TestSubmitQueuesAsyncOperations(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	broker := queue.NewMemory()
	defer broker.Close()
	dispatcher, _, statuses := newDispatcher(t, cfg, broker)

	req := parseRequest(t, `{"operation":"merge","video_urls":["http://example.com/a.mp4","http://example.com/b.mp4"]}`)
	receipt, err := dispatcher.Submit(context.Background(), req, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !receipt.Accepted || receipt.JobID == "" {
		t.Fatalf("receipt = %+v", receipt)
	}
	wantURL := "http://127.0.0.1:8790/status/" + receipt.JobID
	if receipt.StatusURL != wantURL {
		t.Fatalf("status URL = %q, want %q", receipt.StatusURL, wantURL)
	}

	doc, err := statuses.Load(context.Background(), receipt.JobID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Status != status.StatusQueued || doc.Operation != "merge" {
		t.Fatalf("queued doc = %+v", doc)
	}
	if doc.Metadata["inputs"] == "" {
		t.Fatalf("queued doc metadata = %v", doc.Metadata)
	}

	delivery := receiveDelivery(t, broker)
	var payload map[string]any
	if err := json.Unmarshal(delivery.Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["job_id"] != receipt.JobID {
		t.Fatalf("payload job_id = %v, want %q", payload["job_id"], receipt.JobID)
	}
	if payload["operation"] != "merge" {
		t.Fatalf("payload operation = %v", payload["operation"])
	}
	urls, ok := payload["video_urls"].([]any)
	if !ok || len(urls) != 2 {
		t.Fatalf("payload video_urls = %v", payload["video_urls"])
	}
}

func TestSubmitUsesCallerBaseURL(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	broker := queue.NewMemory()
	defer broker.Close()
	dispatcher, _, _ := newDispatcher(t, cfg, broker)

	req := parseRequest(t, `{"operation":"merge","video_urls":["http://example.com/a.mp4","http://example.com/b.mp4"]}`)
	receipt, err := dispatcher.Submit(context.Background(), req, "https://media.example.net/")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := "https://media.example.net/status/" + receipt.JobID
	if receipt.StatusURL != want {
		t.Fatalf("status URL = %q, want %q", receipt.StatusURL, want)
	}
}

func TestSubmitRunsInlineWithoutBroker(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	dispatcher, objects, _ := newDispatcher(t, cfg, nil)
	testsupport.SeedObject(t, objects, "media-in", "raw/clip.mp4", "raw clip bytes")

	req := parseRequest(t, `{"operation":"caption","input":{"url":"s3://media-in/raw/clip.mp4"},"caption":{"text":"Hi"}}`)
	receipt, err := dispatcher.Submit(context.Background(), req, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.Accepted {
		t.Fatal("inline submission marked accepted")
	}
	if receipt.Document == nil {
		t.Fatal("inline submission missing status document")
	}
	if receipt.Document.Status != status.StatusCompleted {
		t.Fatalf("document status = %s", receipt.Document.Status)
	}
	if receipt.Document.Metadata["download_url"] == "" {
		t.Fatalf("document metadata = %v", receipt.Document.Metadata)
	}
	if receipt.Document.JobID != receipt.JobID {
		t.Fatalf("document job id = %q, receipt %q", receipt.Document.JobID, receipt.JobID)
	}
}

func TestSubmitRejectsMalformedJobID(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	broker := queue.NewMemory()
	defer broker.Close()
	dispatcher, _, statuses := newDispatcher(t, cfg, broker)

	req := parseRequest(t, `{"job_id":"bad id!","operation":"merge","video_urls":["http://example.com/a.mp4","http://example.com/b.mp4"]}`)
	_, err := dispatcher.Submit(context.Background(), req, "")
	if !errors.Is(err, jobs.ErrValidation) {
		t.Fatalf("Submit error = %v, want validation", err)
	}
	if _, loadErr := statuses.Load(context.Background(), "bad id!"); !errors.Is(loadErr, status.ErrNotFound) {
		t.Fatalf("Load error = %v, want not found", loadErr)
	}
}

func TestSubmitRemuxNeverQueues(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	broker := queue.NewMemory()
	defer broker.Close()
	dispatcher, objects, _ := newDispatcher(t, cfg, broker)
	testsupport.SeedObject(t, objects, "media-in", "raw/source.mp4", "original media")

	receipt, err := dispatcher.Submit(context.Background(), parseRequest(t, `{"input_key":"raw/source.mp4"}`), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.Accepted {
		t.Fatal("remux marked accepted")
	}
	if receipt.Remux == nil || receipt.Remux.Operation != "ffmpeg_copy" {
		t.Fatalf("remux envelope = %+v", receipt.Remux)
	}

	// The broker must stay empty.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	deliveries, consumeErr := broker.Consume(ctx)
	if consumeErr != nil {
		t.Fatalf("Consume: %v", consumeErr)
	}
	select {
	case delivery, ok := <-deliveries:
		if ok {
			t.Fatalf("unexpected delivery: %s", delivery.Body)
		}
	case <-ctx.Done():
	}
}
