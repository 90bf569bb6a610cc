package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clipforge/internal/config"
	"clipforge/internal/dispatch"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

const (
	// Submission bodies are JSON control payloads, never media.
	maxBodyBytes = 1 << 20
	maxEventEcho = 512
)

// Server is the HTTP gateway: job submission, status polling, health,
// and artifact downloads for the local storage backend.
type Server struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	runner     *pipeline.Runner
	statuses   *status.Store
	objects    storage.ObjectStore
	logger     *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New constructs the gateway. The runner is consulted only for health
// reporting; submissions go through the dispatcher.
func New(cfg *config.Config, dispatcher *dispatch.Dispatcher, runner *pipeline.Runner, statuses *status.Store, objects storage.ObjectStore, logger *slog.Logger) (*Server, error) {
	if cfg == nil || dispatcher == nil || runner == nil || statuses == nil || objects == nil {
		return nil, errors.New("httpapi requires config, dispatcher, runner, status store, and object store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		runner:     runner,
		statuses:   statuses,
		objects:    objects,
		logger:     logging.NewComponentLogger(logger, "httpapi"),
	}, nil
}

// Router assembles the route table. Exposed so tests can drive the
// handler stack without a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverer)

	r.Get("/", s.handleHealth)
	r.Post("/process", s.handleProcess)
	r.Get("/status/{jobID}", s.handleStatus)
	r.Get("/artifacts/{bucket}/*", s.handleArtifact)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	})
	return r
}

// Start binds the listener and serves until the context ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.listener = listener

	// Inline dispatch and artifact streaming can outlast any fixed
	// write deadline, so none is set.
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("gateway listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and closes the listener.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(jobs.WithRequestID(r.Context(), id)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logging.WithContext(r.Context(), s.logger).Info("request handled",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", sw.status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

// recoverer buffers the inbound body so an unhandled fault can echo a
// truncated copy alongside the error, then answers the panic as a 500.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var echo string
		if r.Body != nil && r.Method == http.MethodPost {
			data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "read request body")
				return
			}
			if len(data) > maxBodyBytes {
				s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			echo = truncate(string(data), maxEventEcho)
			r.Body = io.NopCloser(bytes.NewReader(data))
		}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("handler panic",
				logging.String("path", r.URL.Path),
				logging.Any("panic", rec),
			)
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": fmt.Sprint(rec),
				"event": echo,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

// jobError converts a taxonomy error into its HTTP shape.
func (s *Server) jobError(w http.ResponseWriter, r *http.Request, err error) {
	code := jobs.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", logging.Error(err))
	} else {
		logger.Warn("request rejected", logging.Error(err))
	}
	s.writeError(w, code, jobs.Message(err))
}
