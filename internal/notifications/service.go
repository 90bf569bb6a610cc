package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/jobs"
)

const userAgent = "clipforge/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobID string, operation jobs.Operation, downloadURL string) error
	NotifyJobFailed(ctx context.Context, jobID string, operation jobs.Operation, errText string) error
	NotifyWorkerStarted(ctx context.Context, queueName string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		failed:    cfg.Notifications.Failed,
		worker:    cfg.Notifications.Worker,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
	worker    bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobID string, operation jobs.Operation, downloadURL string) error {
	if !n.completed {
		return nil
	}
	message := fmt.Sprintf("✅ %s job %s finished", operation.DisplayName(), jobID)
	if downloadURL = strings.TrimSpace(downloadURL); downloadURL != "" {
		message = fmt.Sprintf("%s\nDownload: %s", message, downloadURL)
	}
	data := payload{
		title:   "ClipForge - Job Complete",
		message: message,
		tags:    []string{"clipforge", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID string, operation jobs.Operation, errText string) error {
	if !n.failed {
		return nil
	}
	errText = strings.TrimSpace(errText)
	if errText == "" {
		errText = "unknown error"
	}
	data := payload{
		title:    "ClipForge - Job Failed",
		message:  fmt.Sprintf("❌ %s job %s failed: %s", operation.DisplayName(), jobID, errText),
		tags:     []string{"clipforge", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyWorkerStarted(ctx context.Context, queueName string) error {
	if !n.worker {
		return nil
	}
	queueName = strings.TrimSpace(queueName)
	if queueName == "" {
		queueName = "default"
	}
	data := payload{
		title:   "ClipForge - Worker Started",
		message: fmt.Sprintf("Worker consuming queue %s", queueName),
		tags:    []string{"clipforge", "worker", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ClipForge - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"clipforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, jobs.Operation, string) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, jobs.Operation, string) error    { return nil }
func (noopService) NotifyWorkerStarted(context.Context, string) error                        { return nil }
func (noopService) TestNotification(context.Context) error                                   { return nil }
