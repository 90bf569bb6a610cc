package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"clipforge/internal/config"
	"clipforge/internal/deps"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/storage"
)

const (
	defaultTimeout = time.Minute
	copyBufferSize = 1 << 20
)

// Fetcher downloads job sources. The zero value is not usable; construct
// with New.
type Fetcher struct {
	objects      storage.ObjectStore
	client       *http.Client
	downloader   string
	userAgent    string
	endpointHost string
	logger       *slog.Logger
}

// New builds a fetcher around the configured object store. The HTTP
// client carries the fetch timeout so a stalled host cannot wedge a
// worker.
func New(objects storage.ObjectStore, cfg *config.Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultTimeout
	var downloader, userAgent, endpointHost string
	if cfg != nil {
		if t := cfg.FetchTimeout(); t > 0 {
			timeout = t
		}
		downloader = cfg.DownloaderBinary()
		userAgent = strings.TrimSpace(cfg.Fetch.UserAgent)
		if endpoint := strings.TrimSpace(cfg.Storage.Endpoint); endpoint != "" {
			if parsed, err := url.Parse(endpoint); err == nil {
				endpointHost = parsed.Host
			}
		}
	}
	return &Fetcher{
		objects:      objects,
		client:       &http.Client{Timeout: timeout},
		downloader:   downloader,
		userAgent:    userAgent,
		endpointHost: endpointHost,
		logger:       logging.NewComponentLogger(logger, "fetch"),
	}
}

// Fetch materializes source at dest, creating parent directories as
// needed. Sources that parse as object-store URLs download through the
// store client; the rest go over HTTP with the downloader binary as a
// fallback.
func (f *Fetcher) Fetch(ctx context.Context, source, dest string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return jobs.Wrap(jobs.ErrValidation, "download", "", "source URL is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return jobs.Wrap(jobs.ErrFetch, "download", "", "create destination directory", err)
	}

	if ref, ok := f.storageRef(source); ok && f.objects != nil {
		f.logger.Debug("fetching from object store",
			slog.String("ref", ref.String()),
			slog.String("dest", dest))
		if err := f.objects.Download(ctx, ref, dest); err != nil {
			return jobs.Wrap(jobs.ErrFetch, "download", "", fmt.Sprintf("download %s", ref), err)
		}
		return nil
	}

	httpErr := f.fetchHTTP(ctx, source, dest)
	if httpErr == nil {
		return nil
	}

	binary, locateErr := deps.LocateTool(f.downloader)
	if locateErr != nil {
		return jobs.Wrap(jobs.ErrFetch, "download", "", fmt.Sprintf("fetch %s", source), httpErr)
	}
	f.logger.Warn("http fetch failed, retrying with downloader",
		slog.String("url", source),
		slog.String("downloader", binary),
		logging.Error(httpErr))
	if err := f.runDownloader(ctx, binary, source, dest); err != nil {
		return jobs.Wrap(jobs.ErrFetch, "download", "", fmt.Sprintf("fetch %s", source), err)
	}
	return nil
}

// storageRef recognizes object-store sources: standard S3 URL shapes
// plus path-style URLs on the configured custom endpoint.
func (f *Fetcher) storageRef(source string) (storage.Ref, bool) {
	if ref, ok := storage.ParseURL(source); ok {
		return ref, true
	}
	if f.endpointHost == "" {
		return storage.Ref{}, false
	}
	parsed, err := url.Parse(source)
	if err != nil || parsed.Host != f.endpointHost {
		return storage.Ref{}, false
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/")
	if !found || bucket == "" || key == "" {
		return storage.Ref{}, false
	}
	return storage.Ref{Bucket: bucket, Key: key}, true
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return writeStream(dest, resp.Body)
}

func (f *Fetcher) runDownloader(ctx context.Context, binary, url, dest string) error {
	args := []string{"-L", "--retry", "3", "-f", "--silent", "--show-error", "-o", dest, url}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("run %s: %w: %s", binary, err, detail)
		}
		return fmt.Errorf("run %s: %w", binary, err)
	}
	return nil
}

// writeStream copies the response into a temp file next to dest and
// renames it into place so partial downloads never look complete.
func writeStream(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(tmp, r, buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", dest, err)
	}
	return nil
}
