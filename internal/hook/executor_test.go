package hook

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/avoid/internal/avoidance"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	path := filepath.Join(t.TempDir(), "hook.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		success bool
		errMsg  string
		wantErr string
	}{
		{name: "json success", script: "echo '{\"success\":true}'\n", success: true},
		{name: "empty stdout", script: "cat > /dev/null\n", success: true},
		{name: "reported failure", script: "echo '{\"success\":false,\"error\":\"no link\"}'\n", errMsg: "no link"},
		{name: "exit status", script: "echo broken >&2\nexit 3\n", wantErr: "stderr: broken"},
		{name: "bad json", script: "echo nope\n", wantErr: "parse hook response"},
		{name: "timeout", script: "exec sleep 5\n", timeout: 100 * time.Millisecond, wantErr: ErrTimeout.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(writeScript(t, tt.script), tt.timeout)
			resp, err := e.Execute(context.Background(), &Request{Event: EventCommand})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.success, resp.Success)
			assert.Equal(t, tt.errMsg, resp.Error)
		})
	}
}

func TestExecutor_ReadsStdin(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stdin.json")
	e := NewExecutor(writeScript(t, "cat > "+out+"\n"), 0)

	_, err := e.Execute(context.Background(), &Request{
		Event:    EventCommand,
		Seq:      7,
		Command:  avoidance.RollLeft,
		Label:    "Roll Left",
		Previous: avoidance.Clear,
		Targets:  avoidance.RollLeft.Targets(),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `"event":"command"`)
	assert.Contains(t, body, `"seq":7`)
	assert.Contains(t, body, `"command":"roll_left"`)
	assert.Contains(t, body, `"previous":"clear"`)
	assert.Contains(t, body, `"roll":-35`)
	assert.False(t, strings.Contains(body, `"threat"`))
}

func TestExecutor_RunsInScriptDir(t *testing.T) {
	path := writeScript(t, "pwd > cwd.txt\n")
	e := NewExecutor(path, 0)

	_, err := e.Execute(context.Background(), &Request{})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(filepath.Dir(path), "cwd.txt"))
	assert.NoError(t, err)
}

func TestNewExecutor_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewExecutor("x", 0).timeout)
	assert.Equal(t, time.Second, NewExecutor("x", time.Second).timeout)
}
