package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// Stub scripts for the external tools. The ffmpeg stub prints one
// progress line and writes placeholder bytes to its final argument,
// which is the output path in every command this repo builds. The
// ffprobe stub reports a ten second clip with one video and one audio
// stream.
const (
	ffmpegStubScript = "#!/bin/sh\n" +
		"echo \"frame=   30 fps=30 q=28.0 size=     256KiB time=00:00:01.00 bitrate=2097.2kbits/s speed=1x\"\n" +
		"for last; do :; done\n" +
		"printf 'transformed media' > \"$last\"\n"

	ffprobeStubScript = "#!/bin/sh\n" +
		"echo '{\"streams\":[{\"index\":0,\"codec_type\":\"video\"},{\"index\":1,\"codec_type\":\"audio\"}]," +
		"\"format\":{\"duration\":\"10.000000\",\"size\":\"1024\",\"bit_rate\":\"819200\"}}'\n"

	downloaderStubScript = "#!/bin/sh\nexit 0\n"
)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.PublicBaseURL = "http://127.0.0.1:8790"
	cfgVal.Storage.Backend = config.StorageBackendLocal
	cfgVal.Storage.LocalRoot = filepath.Join(base, "objects")
	cfgVal.Storage.InputBucket = "media-in"
	cfgVal.Storage.OutputBucket = "media-out"
	cfgVal.Storage.StatusBucket = "media-out"
	cfgVal.Storage.PresignSecret = "test-presign-secret"
	cfgVal.Queue.Backend = config.QueueBackendNone

	for _, dir := range []string{cfgVal.Paths.ScratchDir, cfgVal.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStubbedBinaries writes working stub executables for ffmpeg, ffprobe
// and the downloader, and points the tool configuration at them by
// absolute path.
func WithStubbedBinaries() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		b.cfg.Tools.FFmpeg = StubTool(b.t, binDir, "ffmpeg", ffmpegStubScript)
		b.cfg.Tools.FFprobe = StubTool(b.t, binDir, "ffprobe", ffprobeStubScript)
		b.cfg.Tools.Downloader = StubTool(b.t, binDir, "curl", downloaderStubScript)
	}
}

// WithoutTools points the tool configuration at paths that do not exist
// so capability fallbacks can be exercised.
func WithoutTools() ConfigOption {
	return func(b *configBuilder) {
		missing := filepath.Join(b.baseDir, "missing")
		b.cfg.Tools.FFmpeg = filepath.Join(missing, "ffmpeg")
		b.cfg.Tools.FFprobe = filepath.Join(missing, "ffprobe")
		b.cfg.Tools.Downloader = filepath.Join(missing, "curl")
	}
}

// WithQueue switches the queue backend and connection settings.
func WithQueue(backend, url, name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Backend = backend
		b.cfg.Queue.URL = url
		if name != "" {
			b.cfg.Queue.Name = name
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
