package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/status"
)

// Receipt describes how a submission was dispatched. Accepted receipts
// carry the polling URL; inline receipts carry the terminal status
// document, or the remux envelope for remux jobs.
type Receipt struct {
	Accepted  bool
	JobID     string
	StatusURL string
	Document  *status.Document
	Remux     *pipeline.RemuxResult
}

// Dispatcher routes submissions to the broker or runs them inline.
type Dispatcher struct {
	cfg      *config.Config
	broker   queue.Broker
	runner   *pipeline.Runner
	statuses *status.Store
	logger   *slog.Logger
}

// New builds a dispatcher. A nil broker forces inline execution for
// every operation.
func New(cfg *config.Config, broker queue.Broker, runner *pipeline.Runner, statuses *status.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		cfg:      cfg,
		broker:   broker,
		runner:   runner,
		statuses: statuses,
		logger:   logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Submit routes one parsed request. baseURL is the caller-facing root
// used for the polling URL; empty falls back to the configured public
// base URL.
func (d *Dispatcher) Submit(ctx context.Context, req *jobs.Request, baseURL string) (*Receipt, error) {
	if req == nil {
		return nil, jobs.Wrap(jobs.ErrValidation, "admission", "", "empty request", nil)
	}
	if req.JobID != "" && !jobs.ValidID(req.JobID) {
		return nil, jobs.Wrap(jobs.ErrValidation, "admission", string(req.Operation),
			"job_id must be 4-64 characters of letters, digits, hyphen, or underscore", nil)
	}
	if req.Operation.Async() && d.broker != nil {
		return d.enqueue(ctx, req, baseURL)
	}
	return d.runInline(ctx, req)
}

func (d *Dispatcher) enqueue(ctx context.Context, req *jobs.Request, baseURL string) (*Receipt, error) {
	if req.JobID == "" {
		id, err := jobs.NewID()
		if err != nil {
			return nil, jobs.Wrap(jobs.ErrCapability, "admission", string(req.Operation), "generate job id", err)
		}
		req.JobID = id
	}
	ctx = jobs.WithJobID(ctx, req.JobID)

	// The queued record lands before the message so a poll issued
	// right after the response never sees a missing job.
	change := status.Change{
		Operation: string(req.Operation),
		Status:    status.StatusQueued,
		Metadata:  map[string]string{"inputs": strings.Join(req.InputRefs(), ", ")},
	}
	if _, err := d.statuses.Update(ctx, req.JobID, change); err != nil {
		return nil, jobs.Wrap(jobs.ErrPersistence, "admission", string(req.Operation), "record queued status", err)
	}

	payload, err := queuePayload(req)
	if err != nil {
		return nil, jobs.Wrap(jobs.ErrValidation, "admission", string(req.Operation), "encode queue payload", err)
	}
	if err := d.broker.Enqueue(ctx, payload); err != nil {
		return nil, jobs.Wrap(jobs.ErrPersistence, "admission", string(req.Operation), "enqueue job", err)
	}

	logging.WithContext(ctx, d.logger).Info("job queued",
		logging.String(logging.FieldOperation, string(req.Operation)))
	return &Receipt{
		Accepted:  true,
		JobID:     req.JobID,
		StatusURL: d.statusURL(baseURL, req.JobID),
	}, nil
}

func (d *Dispatcher) runInline(ctx context.Context, req *jobs.Request) (*Receipt, error) {
	result, err := d.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{JobID: result.JobID}
	if result.Remux != nil {
		receipt.Remux = result.Remux
		return receipt, nil
	}

	doc, err := d.statuses.Load(ctx, result.JobID)
	if err != nil {
		return nil, jobs.Wrap(jobs.ErrPersistence, "status", string(req.Operation), "load completed status", err)
	}
	receipt.Document = doc
	return receipt, nil
}

// queuePayload re-encodes the submission with the resolved job id and
// operation so a worker never has to guess either.
func queuePayload(req *jobs.Request) ([]byte, error) {
	wire := map[string]any{}
	if raw := req.Raw(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &wire); err != nil {
			wire = map[string]any{}
		}
	}
	wire["job_id"] = req.JobID
	wire["operation"] = string(req.Operation)
	return json.Marshal(wire)
}

func (d *Dispatcher) statusURL(baseURL, jobID string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = d.cfg.Server.PublicBaseURL
	}
	base = strings.TrimRight(base, "/")
	return base + "/status/" + jobID
}
