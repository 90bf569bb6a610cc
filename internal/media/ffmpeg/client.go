package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary string
	exec   Executor
}

// New constructs an ffmpeg client around the given binary path.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary: binary,
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Progress reports how far into the output timeline a transform is.
type Progress struct {
	Seconds float64
}

// Run executes ffmpeg with the given arguments. When onProgress is
// non-nil it receives every output timestamp parsed from status lines.
func (c *Client) Run(ctx context.Context, args []string, onProgress func(Progress)) error {
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		if onProgress == nil {
			return
		}
		if seconds, ok := parseProgressLine(line); ok {
			onProgress(Progress{Seconds: seconds})
		}
	})
	if err != nil {
		return fmt.Errorf("ffmpeg run: %w", err)
	}
	return nil
}

// parseProgressLine extracts the output timestamp from ffmpeg status
// lines such as "frame= 240 fps=60 ... time=00:00:08.05 bitrate=...".
func parseProgressLine(line string) (float64, bool) {
	idx := strings.Index(line, "time=")
	if idx < 0 {
		return 0, false
	}
	token := line[idx+len("time="):]
	if cut := strings.IndexByte(token, ' '); cut >= 0 {
		token = token[:cut]
	}
	token = strings.TrimSpace(token)
	if token == "" || token == "N/A" {
		return 0, false
	}

	negative := strings.HasPrefix(token, "-")
	token = strings.TrimPrefix(token, "-")
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	total := hours*3600 + minutes*60 + seconds
	if negative {
		return 0, false
	}
	return total, true
}

// tailLines is how much recent tool output failure errors carry.
const tailLines = 12

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	var tailMu sync.Mutex
	var tail []string

	forward := func(line string) {
		tailMu.Lock()
		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[len(tail)-tailLines:]
		}
		tailMu.Unlock()
		if onLine != nil {
			onLine(line)
		}
	}

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		tailMu.Lock()
		detail := strings.Join(tail, " | ")
		tailMu.Unlock()
		if detail != "" {
			return fmt.Errorf("wait command: %w: %s", err, detail)
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
