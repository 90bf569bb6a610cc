package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains scratch and log directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
}

// Server contains the HTTP gateway bind and public URL settings.
type Server struct {
	Bind          string `toml:"bind"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Storage contains the object store backend configuration. The s3 backend
// talks to AWS or any S3-compatible endpoint; the local backend keeps
// objects on disk under LocalRoot.
type Storage struct {
	Backend           string `toml:"backend"`
	Region            string `toml:"region"`
	Endpoint          string `toml:"endpoint"`
	AccessKeyID       string `toml:"access_key_id"`
	SecretAccessKey   string `toml:"secret_access_key"`
	InputBucket       string `toml:"input_bucket"`
	OutputBucket      string `toml:"output_bucket"`
	StatusBucket      string `toml:"status_bucket"`
	LocalRoot         string `toml:"local_root"`
	PresignTTLSeconds int    `toml:"presign_ttl_seconds"`
	PresignSecret     string `toml:"presign_secret"`
}

// Queue contains the job broker configuration. Backend "none" disables
// queued dispatch so every submission executes inline.
type Queue struct {
	Backend string `toml:"backend"`
	URL     string `toml:"url"`
	Name    string `toml:"name"`
}

// Tools names the external binaries the pipeline drives.
type Tools struct {
	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
	Downloader string `toml:"downloader"`
}

// Fetch contains download behaviour for remote sources.
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
	Worker         bool   `toml:"worker"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipforge.
//
// Configuration sections by subsystem:
//   - Paths: scratch space and log directory
//   - Server: HTTP gateway bind address and public base URL
//   - Storage: object store backend, buckets, and presign settings
//   - Queue: job broker backend and queue name
//   - Tools: ffmpeg/ffprobe/downloader binaries
//   - Fetch: remote download timeout and client identity
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Storage       Storage       `toml:"storage"`
	Queue         Queue         `toml:"queue"`
	Tools         Tools         `toml:"tools"`
	Fetch         Fetch         `toml:"fetch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CLIPFORGE_CONFIG"))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Storage.Backend == StorageBackendLocal && strings.TrimSpace(c.Storage.LocalRoot) != "" {
		if err := os.MkdirAll(c.Storage.LocalRoot, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", c.Storage.LocalRoot, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name or path.
func (c *Config) FFmpegBinary() string {
	return c.Tools.FFmpeg
}

// FFprobeBinary returns the ffprobe executable name used for stream inspection.
func (c *Config) FFprobeBinary() string {
	return c.Tools.FFprobe
}

// DownloaderBinary returns the command-line downloader used as a fetch fallback.
func (c *Config) DownloaderBinary() string {
	return c.Tools.Downloader
}

// PresignTTL returns the artifact link expiry as a duration.
func (c *Config) PresignTTL() time.Duration {
	return time.Duration(c.Storage.PresignTTLSeconds) * time.Second
}

// FetchTimeout returns the per-request network timeout for source downloads.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// QueueConfigured reports whether queued dispatch is available.
func (c *Config) QueueConfigured() bool {
	return c.Queue.Backend != QueueBackendNone
}

// StatusBucketName returns the bucket holding status documents, falling
// back to the output bucket when no dedicated status bucket is set.
func (c *Config) StatusBucketName() string {
	if strings.TrimSpace(c.Storage.StatusBucket) != "" {
		return c.Storage.StatusBucket
	}
	return c.Storage.OutputBucket
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the given path.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
