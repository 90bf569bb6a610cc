package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"clipforge/internal/config"
	"clipforge/internal/dispatch"
	"clipforge/internal/httpapi"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv builds a sandboxed config, writes it where the
// default lookup finds it, and pins HOME so no test touches the real
// user directories.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("CLIPFORGE_CONFIG", "")

	configPath := filepath.Join(homeDir, ".config", "clipforge", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	return runCLIWithStdin(t, args, configPath, "")
}

func runCLIWithStdin(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writePayloadFile(t *testing.T, dir, name, payload string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}

// startGateway runs a real gateway on a loopback port for submit and
// status tests and returns its base URL.
func startGateway(t *testing.T, cfg *config.Config, broker queue.Broker) string {
	t.Helper()

	objects := testsupport.MustObjectStore(t, cfg)
	statuses := testsupport.MustStatusStore(t, cfg, objects)
	runner, err := pipeline.New(cfg, objects, statuses, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	dispatcher := dispatch.New(cfg, broker, runner, statuses, logging.NewNop())
	server, err := httpapi.New(cfg, dispatcher, runner, statuses, objects, logging.NewNop())
	if err != nil {
		t.Fatalf("httpapi.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := server.Start(ctx); err != nil {
		cancel()
		t.Fatalf("server.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		server.Stop()
	})
	return "http://" + server.Addr()
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
