package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/jobs"
	"clipforge/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
}

func newNtfyConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Completed = true
	cfg.Notifications.Failed = true
	cfg.Notifications.Worker = true
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "abc123", jobs.OpMerge, ""); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifyJobCompletedPayload(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	defer server.Close()

	svc := notifications.NewService(newNtfyConfig(server.URL))
	err := svc.NotifyJobCompleted(context.Background(), "abc123", jobs.OpMerge, "https://example.com/artifact")
	if err != nil {
		t.Fatalf("NotifyJobCompleted returned error: %v", err)
	}
	if len(sink) != 1 {
		t.Fatalf("expected one notification, got %d", len(sink))
	}
	got := sink[0]
	if got.title != "ClipForge - Job Complete" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.tags != "clipforge,job,completed" {
		t.Fatalf("unexpected tags %q", got.tags)
	}
	if !strings.Contains(got.body, "Merge job abc123 finished") {
		t.Fatalf("unexpected body %q", got.body)
	}
	if !strings.Contains(got.body, "https://example.com/artifact") {
		t.Fatalf("expected download link in body %q", got.body)
	}
}

func TestNotifyJobFailedPayload(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	defer server.Close()

	svc := notifications.NewService(newNtfyConfig(server.URL))
	err := svc.NotifyJobFailed(context.Background(), "abc123", jobs.OpCaption, "boom")
	if err != nil {
		t.Fatalf("NotifyJobFailed returned error: %v", err)
	}
	if len(sink) != 1 {
		t.Fatalf("expected one notification, got %d", len(sink))
	}
	got := sink[0]
	if got.title != "ClipForge - Job Failed" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.priority != "high" {
		t.Fatalf("expected high priority, got %q", got.priority)
	}
	if !strings.Contains(got.body, "Caption job abc123 failed: boom") {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestEventClassGating(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	defer server.Close()

	cfg := newNtfyConfig(server.URL)
	cfg.Notifications.Completed = false
	cfg.Notifications.Worker = false
	svc := notifications.NewService(cfg)

	ctx := context.Background()
	if err := svc.NotifyJobCompleted(ctx, "abc123", jobs.OpMerge, ""); err != nil {
		t.Fatalf("gated completed event returned error: %v", err)
	}
	if err := svc.NotifyWorkerStarted(ctx, "media-jobs"); err != nil {
		t.Fatalf("gated worker event returned error: %v", err)
	}
	if len(sink) != 0 {
		t.Fatalf("expected gated events to send nothing, got %d", len(sink))
	}

	if err := svc.NotifyJobFailed(ctx, "abc123", jobs.OpMerge, "boom"); err != nil {
		t.Fatalf("NotifyJobFailed returned error: %v", err)
	}
	if len(sink) != 1 {
		t.Fatalf("expected failed event to send, got %d", len(sink))
	}
}

func TestSendReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := notifications.NewService(newNtfyConfig(server.URL))
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status in error, got %v", err)
	}
}
