package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// maxCapturedOutput bounds stdout/stderr kept from a single command
const maxCapturedOutput = 1 << 20

// CommandRunner executes installer and probe processes with a wall-clock limit
type CommandRunner struct {
	defaultTimeout time.Duration
	// waitDelay bounds how long Wait blocks on orphaned pipes after a kill
	waitDelay time.Duration
}

// NewCommandRunner creates a new command runner
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		defaultTimeout: 30 * time.Second,
		waitDelay:      2 * time.Second,
	}
}

// CommandSpec describes one process to run
type CommandSpec struct {
	Path        string
	Args        []string
	WorkingDir  string
	Env         map[string]string
	Timeout     time.Duration
	Description string
}

// CommandResult contains the result of a command execution
type CommandResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
	Error    error
}

// Run executes spec. The parent context cancelling is reported as an error,
// the command's own deadline as TimedOut. Either one kills the whole process group.
func (r *CommandRunner) Run(ctx context.Context, spec CommandSpec) *CommandResult {
	startTime := time.Now()
	result := &CommandResult{}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: Installer and probe invocations are built from validated config
	cmd := exec.CommandContext(execCtx, spec.Path, spec.Args...)
	cmd.WaitDelay = r.waitDelay
	isolateProcessGroup(cmd)
	if spec.WorkingDir != "" {
		cmd.Dir = spec.WorkingDir
	}
	cmd.Env = mergeEnv(os.Environ(), spec.Env)

	stdout := &cappedBuffer{limit: maxCapturedOutput}
	stderr := &cappedBuffer{limit: maxCapturedOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		result.ExitCode = -1
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			result.TimedOut = true
			result.Error = fmt.Errorf("%s timed out after %v", describe(spec), timeout)
		case ctx.Err() != nil:
			result.Error = ctx.Err()
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

func describe(spec CommandSpec) string {
	if spec.Description != "" {
		return spec.Description
	}
	return spec.Path
}

// mergeEnv overlays overrides on base, replacing existing keys.
// Output is sorted for deterministic child environments.
func mergeEnv(base []string, overrides map[string]string) []string {
	env := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range overrides {
		env[k] = v
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// cappedBuffer keeps the first limit bytes and silently drops the rest
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	return c.buf.String()
}
