package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"clipforge/internal/storage"
)

// ErrNotFound marks lookups for jobs with no status document.
var ErrNotFound = errors.New("job not found")

// Status is a job lifecycle state.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusProcessing   Status = "processing"
	StatusDownloading  Status = "downloading"
	StatusMerging      Status = "merging"
	StatusTransforming Status = "transforming"
	StatusUploading    Status = "uploading"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether the state ends the job lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is the persisted job record.
type Document struct {
	JobID     string            `json:"job_id"`
	Operation string            `json:"operation,omitempty"`
	Status    Status            `json:"status"`
	Progress  float64           `json:"progress"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Change describes one status transition. Empty fields inherit from
// the stored document where that makes sense: Operation and CreatedAt
// are sticky, Metadata merges, Message and Error are per-transition.
type Change struct {
	Operation string
	Status    Status
	Progress  float64
	Message   string
	Error     string
	Metadata  map[string]string
}

// Store reads and writes status documents.
type Store struct {
	objects storage.ObjectStore
	bucket  string
}

// NewStore writes documents into the given bucket.
func NewStore(objects storage.ObjectStore, bucket string) *Store {
	return &Store{objects: objects, bucket: bucket}
}

// Key returns the object key for a job's status document.
func Key(jobID string) string {
	return "jobs/" + jobID + "/status.json"
}

func (s *Store) ref(jobID string) storage.Ref {
	return storage.Ref{Bucket: s.bucket, Key: Key(jobID)}
}

// Load fetches a job's status document.
func (s *Store) Load(ctx context.Context, jobID string) (*Document, error) {
	body, err := s.objects.Get(ctx, s.ref(jobID))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("load status for job %s: %w", jobID, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read status for job %s: %w", jobID, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode status for job %s: %w", jobID, err)
	}
	return &doc, nil
}

// Update applies a transition and returns the stored document.
//
// Progress is clamped to [0,100] and rounded to one decimal. It never
// decreases across updates, and a failed transition pins it to 100 so
// pollers always see failed jobs as finished.
func (s *Store) Update(ctx context.Context, jobID string, change Change) (*Document, error) {
	if jobID == "" {
		return nil, fmt.Errorf("update status: job id is required")
	}

	existing, err := s.Load(ctx, jobID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	doc := Document{
		JobID:     jobID,
		Operation: change.Operation,
		Status:    change.Status,
		Progress:  ClampProgress(change.Progress),
		Message:   change.Message,
		Error:     change.Error,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if existing != nil {
		if doc.Operation == "" {
			doc.Operation = existing.Operation
		}
		if !existing.CreatedAt.IsZero() {
			doc.CreatedAt = existing.CreatedAt
		}
		if existing.Progress > doc.Progress && !doc.Status.Terminal() {
			doc.Progress = existing.Progress
		}
		if len(existing.Metadata) > 0 {
			doc.Metadata = make(map[string]string, len(existing.Metadata)+len(change.Metadata))
			for k, v := range existing.Metadata {
				doc.Metadata[k] = v
			}
		}
	}
	if len(change.Metadata) > 0 {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]string, len(change.Metadata))
		}
		for k, v := range change.Metadata {
			doc.Metadata[k] = v
		}
	}

	if doc.Status == StatusFailed {
		doc.Progress = 100
	}

	if err := s.save(ctx, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) save(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode status for job %s: %w", doc.JobID, err)
	}
	if err := s.objects.Put(ctx, s.ref(doc.JobID), bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("save status for job %s: %w", doc.JobID, err)
	}
	return nil
}

// ClampProgress bounds a completion percentage to [0,100] and rounds
// it to one decimal place.
func ClampProgress(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return math.Round(p*10) / 10
}
