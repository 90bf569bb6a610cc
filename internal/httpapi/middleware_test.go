package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clipforge/internal/logging"
)

func TestRecovererEchoesInboundEvent(t *testing.T) {
	s := &Server{logger: logging.NewNop()}
	handler := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("transform stage blew up")
	}))

	body := `{"operation":"merge","video_urls":["http://example.com/a.mp4"]}`
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp["error"], "transform stage blew up") {
		t.Fatalf("error = %q", resp["error"])
	}
	if resp["event"] != body {
		t.Fatalf("event = %q, want inbound body", resp["event"])
	}
}

func TestRecovererTruncatesLongEcho(t *testing.T) {
	s := &Server{logger: logging.NewNop()}
	handler := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	body := strings.Repeat("x", maxEventEcho*4)
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["event"]) != maxEventEcho {
		t.Fatalf("echo length = %d, want %d", len(resp["event"]), maxEventEcho)
	}
}

func TestRecovererRejectsOversizedBody(t *testing.T) {
	s := &Server{logger: logging.NewNop()}
	reached := false
	handler := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	body := strings.Repeat("x", maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if reached {
		t.Fatalf("handler ran despite oversized body")
	}
}

func TestRecovererReplaysBodyToHandler(t *testing.T) {
	s := &Server{logger: logging.NewNop()}
	var seen string
	handler := s.recoverer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		data := make([]byte, 64)
		n, _ := r.Body.Read(data)
		seen = string(data[:n])
	}))

	body := `{"job_id":"replay99"}`
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != body {
		t.Fatalf("handler saw %q, want %q", seen, body)
	}
}
