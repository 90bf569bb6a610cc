package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/fetch"
	"clipforge/internal/jobs"
	"clipforge/internal/storage"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Fetch.TimeoutSeconds = 5
	cfg.Tools.Downloader = ""
	return &cfg
}

func TestFetchHTTP(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("media bytes"))
	}))
	defer server.Close()

	cfg := newConfig(t)
	f := fetch.New(nil, cfg, nil)

	dest := filepath.Join(t.TempDir(), "nested", "dir", "clip.mp4")
	if err := f.Fetch(context.Background(), server.URL+"/clip.mp4", dest); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "media bytes" {
		t.Fatalf("unexpected content %q", data)
	}
	if !strings.Contains(gotAgent, "Mozilla") {
		t.Fatalf("expected browser user agent, got %q", gotAgent)
	}
}

func TestFetchHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := fetch.New(nil, newConfig(t), nil)
	dest := filepath.Join(t.TempDir(), "clip.mp4")
	err := f.Fetch(context.Background(), server.URL+"/missing.mp4", dest)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !errors.Is(err, jobs.ErrFetch) {
		t.Fatalf("expected fetch classification, got %v", err)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected no file on failure, stat err=%v", statErr)
	}
}

func TestFetchDownloaderFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	stub := filepath.Join(t.TempDir(), "curl")
	script := "#!/bin/sh\nprintf 'fallback bytes' > \"$8\"\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	cfg := newConfig(t)
	cfg.Tools.Downloader = stub
	f := fetch.New(nil, cfg, nil)

	dest := filepath.Join(t.TempDir(), "clip.mp4")
	if err := f.Fetch(context.Background(), server.URL+"/clip.mp4", dest); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "fallback bytes" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestFetchDownloaderFailureKeepsClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	stub := filepath.Join(t.TempDir(), "curl")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 22\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	cfg := newConfig(t)
	cfg.Tools.Downloader = stub
	f := fetch.New(nil, cfg, nil)

	err := f.Fetch(context.Background(), server.URL+"/clip.mp4", filepath.Join(t.TempDir(), "clip.mp4"))
	if err == nil {
		t.Fatal("expected error when fallback fails")
	}
	if !errors.Is(err, jobs.ErrFetch) {
		t.Fatalf("expected fetch classification, got %v", err)
	}
}

func TestFetchObjectStoreURL(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.LocalRoot = t.TempDir()
	cfg.Storage.PresignSecret = "test-secret"
	store, err := storage.NewLocalStore(&cfg)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ctx := context.Background()
	ref := storage.Ref{Bucket: "media-in", Key: "raw/clip.mp4"}
	if err := store.Put(ctx, ref, strings.NewReader("stored payload"), "video/mp4"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	f := fetch.New(store, newConfig(t), nil)
	dest := filepath.Join(t.TempDir(), "clip.mp4")
	if err := f.Fetch(ctx, "s3://media-in/raw/clip.mp4", dest); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "stored payload" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestFetchCustomEndpointURL(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.LocalRoot = t.TempDir()
	cfg.Storage.PresignSecret = "test-secret"
	cfg.Storage.Endpoint = "http://minio.internal:9000"
	store, err := storage.NewLocalStore(&cfg)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ctx := context.Background()
	ref := storage.Ref{Bucket: "media-in", Key: "raw/clip.mp4"}
	if err := store.Put(ctx, ref, strings.NewReader("endpoint payload"), "video/mp4"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	f := fetch.New(store, &cfg, nil)
	dest := filepath.Join(t.TempDir(), "clip.mp4")
	if err := f.Fetch(ctx, "http://minio.internal:9000/media-in/raw/clip.mp4", dest); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "endpoint payload" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestFetchMissingObject(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.LocalRoot = t.TempDir()
	cfg.Storage.PresignSecret = "test-secret"
	store, err := storage.NewLocalStore(&cfg)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	f := fetch.New(store, newConfig(t), nil)
	err = f.Fetch(context.Background(), "s3://media-in/absent.mp4", filepath.Join(t.TempDir(), "clip.mp4"))
	if err == nil {
		t.Fatal("expected error for missing object")
	}
	if !errors.Is(err, jobs.ErrFetch) {
		t.Fatalf("expected fetch classification, got %v", err)
	}
}

func TestFetchEmptySource(t *testing.T) {
	f := fetch.New(nil, newConfig(t), nil)
	err := f.Fetch(context.Background(), "  ", filepath.Join(t.TempDir(), "clip.mp4"))
	if err == nil {
		t.Fatal("expected error for empty source")
	}
	if !errors.Is(err, jobs.ErrValidation) {
		t.Fatalf("expected validation classification, got %v", err)
	}
}
