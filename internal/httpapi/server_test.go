package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/dispatch"
	"clipforge/internal/httpapi"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/status"
	"clipforge/internal/storage"
	"clipforge/internal/testsupport"
)

func newHandler(t *testing.T, cfg *config.Config, broker queue.Broker) (http.Handler, storage.ObjectStore) {
	t.Helper()

	objects := testsupport.MustObjectStore(t, cfg)
	statuses := testsupport.MustStatusStore(t, cfg, objects)
	runner, err := pipeline.New(cfg, objects, statuses, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	dispatcher := dispatch.New(cfg, broker, runner, statuses, logging.NewNop())
	server, err := httpapi.New(cfg, dispatcher, runner, statuses, objects, logging.NewNop())
	if err != nil {
		t.Fatalf("httpapi.New: %v", err)
	}
	return server.Router(), objects
}

func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestHealthReportsRuntimeState(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["message"] != "clipforge healthy" {
		t.Fatalf("unexpected health body: %v", body)
	}
	if body["has_ffmpeg"] != true {
		t.Fatalf("has_ffmpeg = %v, want true", body["has_ffmpeg"])
	}
	if body["scratch_dir_exists"] != true {
		t.Fatalf("scratch_dir_exists = %v, want true", body["scratch_dir_exists"])
	}
	if body["storage_backend"] != "local" || body["queue_backend"] != "none" {
		t.Fatalf("unexpected backends: %v", body)
	}
}

func TestHealthReportsMissingFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutTools())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodGet, "/", "")
	body := decodeBody(t, rec)
	if body["has_ffmpeg"] != false {
		t.Fatalf("has_ffmpeg = %v, want false", body["has_ffmpeg"])
	}
}

func TestProcessQueuedReturnsAcceptance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	broker := queue.NewMemory()
	defer broker.Close()
	handler, _ := newHandler(t, cfg, broker)

	rec := serve(t, handler, http.MethodPost, "/process",
		`{"operation":"merge","video_urls":["http://example.com/a.mp4","http://example.com/b.mp4"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("process status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["accepted"] != true {
		t.Fatalf("accepted = %v, want true", body["accepted"])
	}
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatalf("missing job_id in %v", body)
	}
	statusURL, _ := body["status_url"].(string)
	if statusURL != "http://127.0.0.1:8790/status/"+jobID {
		t.Fatalf("status_url = %q", statusURL)
	}

	poll := serve(t, handler, http.MethodGet, "/status/"+jobID, "")
	if poll.Code != http.StatusOK {
		t.Fatalf("status poll = %d, want 200", poll.Code)
	}
	doc := decodeBody(t, poll)
	if doc["status"] != string(status.StatusQueued) {
		t.Fatalf("polled status = %v, want queued", doc["status"])
	}
	if doc["job_id"] != jobID {
		t.Fatalf("polled job_id = %v, want %s", doc["job_id"], jobID)
	}
}

func TestProcessInlineCaptionReturnsDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, objects := newHandler(t, cfg, nil)
	testsupport.SeedObject(t, objects, "media-in", "raw/clip.mp4", "source media")

	rec := serve(t, handler, http.MethodPost, "/process",
		`{"job_id":"http-cap1","operation":"caption","input":{"url":"s3://media-in/raw/clip.mp4"},"caption":{"text":"Hello"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	doc := decodeBody(t, rec)
	if doc["job_id"] != "http-cap1" {
		t.Fatalf("job_id = %v", doc["job_id"])
	}
	if doc["status"] != string(status.StatusCompleted) {
		t.Fatalf("status = %v, want completed", doc["status"])
	}
	if doc["progress"] != float64(100) {
		t.Fatalf("progress = %v, want 100", doc["progress"])
	}
	metadata, _ := doc["metadata"].(map[string]any)
	if link, _ := metadata["download_url"].(string); link == "" {
		t.Fatalf("missing download_url in metadata: %v", doc)
	}
}

func TestProcessRemuxReturnsEnvelope(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, objects := newHandler(t, cfg, nil)
	testsupport.SeedObject(t, objects, "media-in", "raw/source.mp4", "container bytes")

	rec := serve(t, handler, http.MethodPost, "/process", `{"input_key":"raw/source.mp4"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("remux status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["operation"] != "ffmpeg_copy" {
		t.Fatalf("operation = %v, want ffmpeg_copy", body["operation"])
	}
	output, _ := body["output"].(map[string]any)
	if output["bucket"] != "media-out" || output["key"] != "processed/raw/source.mp4" {
		t.Fatalf("unexpected output object: %v", output)
	}

	exists, err := objects.Exists(context.Background(), storage.Ref{Bucket: "media-out", Key: "processed/raw/source.mp4"})
	if err != nil || !exists {
		t.Fatalf("remux output missing: exists=%v err=%v", exists, err)
	}
}

func TestProcessRemuxValidationMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodPost, "/process", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	want := "Missing required fields: input_bucket, input_key, output_bucket, output_key"
	if body["error"] != want {
		t.Fatalf("error = %q, want %q", body["error"], want)
	}
}

func TestProcessRejectsMalformedJSON(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodPost, "/process", `{"operation": "merge"`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "invalid JSON payload") {
		t.Fatalf("error = %q", msg)
	}
}

func TestProcessCapabilityErrorMapsTo422(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutTools())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodPost, "/process",
		`{"operation":"caption","input":{"url":"http://example.com/a.mp4"},"caption":{"text":"Hi"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestStatusUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, _ := newHandler(t, cfg, nil)

	for _, target := range []string{"/status/never-ran", "/status/bad%20id"} {
		rec := serve(t, handler, http.MethodGet, target, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s = %d, want 404", target, rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] != "Job not found" {
			t.Fatalf("error = %q, want Job not found", body["error"])
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodGet, "/process", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "method GET not allowed" {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestArtifactDownloadRoundtrip(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, objects := newHandler(t, cfg, nil)
	ref := testsupport.SeedObject(t, objects, "media-out", "outputs/dl1/caption.mp4", "final media")

	link, err := objects.Presign(context.Background(), ref, time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse presigned link %q: %v", link, err)
	}

	rec := serve(t, handler, http.MethodGet, parsed.RequestURI(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("artifact status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "final media" {
		t.Fatalf("artifact body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("content type = %q, want video/mp4", ct)
	}
}

func TestArtifactRejectsTamperedSignature(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, objects := newHandler(t, cfg, nil)
	ref := testsupport.SeedObject(t, objects, "media-out", "outputs/dl2/caption.mp4", "final media")

	link, err := objects.Presign(context.Background(), ref, time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse presigned link: %v", err)
	}
	query := parsed.Query()
	query.Set("sig", "deadbeef")
	parsed.RawQuery = query.Encode()

	rec := serve(t, handler, http.MethodGet, parsed.RequestURI(), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "artifact signature mismatch" {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestArtifactRejectsExpiredLink(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodGet, "/artifacts/media-out/outputs/x.mp4?exp=1&sig=aa", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "artifact link expired" {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestArtifactMissingQueryIsForbidden(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodGet, "/artifacts/media-out/outputs/x.mp4", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "invalid artifact link" {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	handler, _ := newHandler(t, cfg, nil)

	rec := serve(t, handler, http.MethodGet, "/", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}
}
