package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"clipforge/internal/config"
	"clipforge/internal/deps"
	"clipforge/internal/queue"
	"clipforge/internal/storage"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStorage verifies that the object store can be built and the
// output bucket answers a probe. For the local backend this touches
// only the filesystem; for s3 it performs one HEAD request.
func CheckStorage(ctx context.Context, cfg *config.Config) Result {
	const name = "Object storage"

	bucket := strings.TrimSpace(cfg.Storage.OutputBucket)
	if bucket == "" {
		return Result{Name: name, Detail: "output bucket not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	objects, err := storage.FromConfig(checkCtx, cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	ref := storage.Ref{Bucket: bucket, Key: "preflight/probe"}
	if _, err := objects.Exists(checkCtx, ref); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("bucket %s not reachable (%v)", bucket, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s backend, bucket %s reachable", cfg.Storage.Backend, bucket)}
}

// CheckQueue verifies broker connectivity. An unconfigured queue is a
// pass since dispatch runs inline without one.
func CheckQueue(ctx context.Context, cfg *config.Config) Result {
	const name = "Queue broker"

	if !cfg.QueueConfigured() {
		return Result{Name: name, Passed: true, Detail: "inline dispatch (no broker configured)"}
	}

	broker, err := queue.FromConfig(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer broker.Close()

	if pinger, ok := broker.(interface{ Ping(context.Context) error }); ok {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pinger.Ping(checkCtx); err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s queue %q reachable", cfg.Queue.Backend, cfg.Queue.Name)}
}

// CheckNotifications verifies that the ntfy endpoint answers. A missing
// topic passes because notifications are optional.
func CheckNotifications(ctx context.Context, cfg *config.Config) Result {
	const name = "Notifications"

	endpoint := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if endpoint == "" {
		return Result{Name: name, Passed: true, Detail: "disabled"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckTools evaluates the external binaries the pipeline drives. Both
// the worker startup snapshot and the CLI health command use this so
// the requirements list lives in one place.
func CheckTools(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for media transforms",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for output validation",
		},
		{
			Name:        "Downloader",
			Command:     cfg.DownloaderBinary(),
			Description: "Fallback downloader for HTTP sources",
			Optional:    true,
		},
	})
}
