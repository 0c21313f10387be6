package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds a single hook run.
const DefaultTimeout = 2 * time.Second

// waitDelay bounds how long output pipes are drained after the program is
// killed, so a grandchild holding stdout cannot stall the hook.
const waitDelay = 500 * time.Millisecond

// ErrTimeout is returned when the hook outlives its timeout.
var ErrTimeout = errors.New("hook timed out")

// Executor runs one external program with a timeout.
type Executor struct {
	path    string
	timeout time.Duration
}

// NewExecutor creates an Executor for the program at path. A non-positive
// timeout means DefaultTimeout.
func NewExecutor(path string, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{path: path, timeout: timeout}
}

// Path returns the program path.
func (e *Executor) Path() string {
	return e.path
}

// Execute runs the program in its own directory with req on stdin and parses
// stdout as a Response.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.path)
	cmd.Dir = filepath.Dir(e.path)
	cmd.Stdin = bytes.NewReader(body)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
	if err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("run hook: %w, stderr: %s", err, msg)
		}
		return nil, fmt.Errorf("run hook: %w", err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return &Response{Success: true}, nil
	}

	var resp Response
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("parse hook response: %w, stdout: %s", err, out)
	}
	return &resp, nil
}
