package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/preflight"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	scratch := preflight.CheckDirectoryAccess("Scratch directory", s.cfg.Paths.ScratchDir)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"message":            "clipforge healthy",
		"has_ffmpeg":         s.runner.FFmpegAvailable(),
		"scratch_dir_exists": scratch.Passed,
		"storage_backend":    s.cfg.Storage.Backend,
		"queue_backend":      s.cfg.Queue.Backend,
	})
}

// handleProcess admits a job request. Queued submissions answer with an
// acceptance receipt, synchronous ones with the final status document,
// and remux with its copy envelope.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	req, err := jobs.ParseRequest(body, jobs.OpRemux)
	if err != nil {
		s.jobError(w, r, err)
		return
	}

	receipt, err := s.dispatcher.Submit(r.Context(), req, s.requestBaseURL(r))
	if err != nil {
		s.jobError(w, r, err)
		return
	}

	switch {
	case receipt.Accepted:
		s.writeJSON(w, http.StatusAccepted, map[string]any{
			"accepted":   true,
			"job_id":     receipt.JobID,
			"status_url": receipt.StatusURL,
		})
	case receipt.Remux != nil:
		s.writeJSON(w, http.StatusOK, receipt.Remux)
	default:
		s.writeJSON(w, http.StatusOK, receipt.Document)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !jobs.ValidID(jobID) {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	doc, err := s.statuses.Load(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		logging.WithContext(r.Context(), s.logger).Error("status lookup failed",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "load job status")
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// handleArtifact serves signed download links minted by the local
// store. S3 deployments hand out presigned URLs directly, so the
// route answers 404 there.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	verifier, ok := s.objects.(storage.ArtifactVerifier)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	bucket := chi.URLParam(r, "bucket")
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if bucket == "" || key == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	signature := r.URL.Query().Get("sig")
	expires, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
	if err != nil || signature == "" {
		s.writeError(w, http.StatusForbidden, "invalid artifact link")
		return
	}
	if err := verifier.VerifyArtifact(bucket, key, expires, signature); err != nil {
		s.writeError(w, http.StatusForbidden, err.Error())
		return
	}

	object, err := s.objects.Get(r.Context(), storage.Ref{Bucket: bucket, Key: key})
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		logging.WithContext(r.Context(), s.logger).Error("artifact read failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "read artifact")
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", storage.ContentTypeFor(key))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, object); err != nil {
		logging.WithContext(r.Context(), s.logger).Warn("artifact stream interrupted", logging.Error(err))
	}
}

// requestBaseURL picks the host used to mint status links. An
// operator-provided public base URL wins over the request host.
func (s *Server) requestBaseURL(r *http.Request) string {
	if base := strings.TrimSpace(s.cfg.Server.PublicBaseURL); base != "" {
		return base
	}
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
