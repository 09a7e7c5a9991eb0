package gateways

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

func testCatalog(t *testing.T) *entities.ProbeCatalog {
	t.Helper()
	catalog, err := entities.NewProbeCatalog([]entities.ProbeSpec{
		{
			BugClass:     entities.BugClassMemoryLeak,
			EntryPoints:  []string{"loads", "dumps"},
			PythonScript: "print('unused by fake runtime')\n",
			NodeScript:   "console.log('unused')\n",
			Outcomes: []entities.OutcomeRule{
				{Outcome: entities.OutcomeStable, Passed: entities.BoolPtr(true), Message: "Memory stable."},
				{Outcome: entities.OutcomeLeak, Passed: entities.BoolPtr(false), Message: "Memory grew by {mb}MB."},
			},
		},
		{
			BugClass:     entities.BugClassNullPointer,
			PythonScript: "pass\n",
			Outcomes:     []entities.OutcomeRule{{Outcome: entities.OutcomeHandled, Passed: entities.BoolPtr(true)}},
		},
	})
	require.NoError(t, err)
	return catalog
}

// fakeRuntime writes an executable shell script standing in for python3.
// installBody runs for "-m pip install", runBody for the probe.
func fakeRuntime(t *testing.T, installBody, runBody string) string {
	t.Helper()
	requireShell(t)
	path := filepath.Join(t.TempDir(), "python3")
	script := "#!/bin/sh\nif [ \"$1\" = \"-m\" ]; then\n" + installBody + "\nfi\n" + runBody + "\n"
	//nolint:gosec // G306: test runtime must be executable
	require.NoError(t, os.WriteFile(path, []byte(script), 0700))
	return path
}

func newTestProbeRunner(t *testing.T, python string) *probeRunner {
	t.Helper()
	return NewProbeRunner(testCatalog(t), ProbeRunnerConfig{
		Python:         python,
		InstallTimeout: 5 * time.Second,
		ExecTimeout:    200 * time.Millisecond,
		WorkDir:        t.TempDir(),
		ImportNames:    map[string]string{"PyYAML": "yaml"},
	}, nil)
}

func pyReq(class entities.BugClass) entities.ProbeRequest {
	return entities.ProbeRequest{Package: "simple-json", Version: "1.2.0", BugClass: class, Ecosystem: entities.EcosystemPyPI}
}

func TestProbeRunner_NotRunReasons(t *testing.T) {
	p := newTestProbeRunner(t, "python3")

	res := p.RunProbe(context.Background(), pyReq(entities.BugClassRaceCondition))
	assert.False(t, res.Ran)
	assert.Equal(t, entities.ProbeStateNotRun, res.State)
	assert.Equal(t, "No probe defined for bug class 'race_condition'.", res.Reason)
	assert.Equal(t, "1.2.0", res.Version)

	req := pyReq(entities.BugClassMemoryLeak)
	req.Ecosystem = entities.Ecosystem("cargo")
	res = p.RunProbe(context.Background(), req)
	assert.Equal(t, "Behavioral probing not supported for ecosystem 'cargo'.", res.Reason)

	req = pyReq(entities.BugClassNullPointer)
	req.Ecosystem = entities.EcosystemNPM
	res = p.RunProbe(context.Background(), req)
	assert.Equal(t, "No Node.js probe defined for bug class 'null_pointer'.", res.Reason)
}

func TestProbeRunner_MissingRuntime(t *testing.T) {
	p := newTestProbeRunner(t, "python3")
	p.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	res := p.RunProbe(context.Background(), pyReq(entities.BugClassMemoryLeak))
	assert.False(t, res.Ran)
	assert.Equal(t, "python3 not found in PATH; cannot run Python probes", res.Reason)

	req := pyReq(entities.BugClassMemoryLeak)
	req.Ecosystem = entities.EcosystemNPM
	res = p.RunProbe(context.Background(), req)
	assert.Equal(t, "node/npm not found in PATH; cannot run Node.js probes", res.Reason)
}

func TestProbeRunner_Completed(t *testing.T) {
	python := fakeRuntime(t, "exit 0", `echo "warming up"; echo "LEAK:52428800"`)
	p := newTestProbeRunner(t, python)

	res := p.RunProbe(context.Background(), pyReq(entities.BugClassMemoryLeak))
	assert.True(t, res.Ran)
	assert.Equal(t, entities.ProbeStateCompleted, res.State)
	assert.Equal(t, entities.OutcomeLeak, res.Outcome)
	require.NotNil(t, res.Passed)
	assert.False(t, *res.Passed)
	assert.Equal(t, "Memory grew by 50MB.", res.Message)
}

func TestProbeRunner_PassesImportNameAndEntryPoints(t *testing.T) {
	python := fakeRuntime(t, "exit 0", `if [ "$2" = "yaml" ] && [ "$3" = "loads,dumps" ]; then echo STABLE; else echo "BAD:$2:$3"; fi`)
	p := newTestProbeRunner(t, python)

	req := pyReq(entities.BugClassMemoryLeak)
	req.Package = "PyYAML"
	res := p.RunProbe(context.Background(), req)
	assert.Equal(t, entities.OutcomeStable, res.Outcome, res.Message)
	require.NotNil(t, res.Passed)
	assert.True(t, *res.Passed)
}

func TestProbeRunner_InstallFailed(t *testing.T) {
	python := fakeRuntime(t, "echo 'No matching distribution' >&2; exit 1", "echo STABLE")
	p := newTestProbeRunner(t, python)

	res := p.RunProbe(context.Background(), pyReq(entities.BugClassMemoryLeak))
	assert.False(t, res.Ran)
	assert.Equal(t, entities.ProbeStateInstallFailed, res.State)
	assert.Equal(t, "Could not install simple-json==1.2.0 for probing.", res.Reason)
}

func TestProbeRunner_Timeout(t *testing.T) {
	python := fakeRuntime(t, "exit 0", "exec sleep 5")
	p := newTestProbeRunner(t, python)

	res := p.RunProbe(context.Background(), pyReq(entities.BugClassMemoryLeak))
	assert.True(t, res.Ran)
	assert.Equal(t, entities.ProbeStateTimeout, res.State)
	assert.Equal(t, entities.OutcomeTimeout, res.Outcome)
	require.NotNil(t, res.Passed)
	assert.False(t, *res.Passed)
}

func TestProbeRunner_SilentNonZeroExit(t *testing.T) {
	python := fakeRuntime(t, "exit 0", "exit 3")
	p := newTestProbeRunner(t, python)

	res := p.RunProbe(context.Background(), pyReq(entities.BugClassMemoryLeak))
	assert.Equal(t, entities.OutcomeUnknown, res.Outcome)
	assert.Nil(t, res.Passed)
	assert.Equal(t, "Probe exited with code 3 without a result token.", res.Message)
}

func TestProbeRunner_SandboxReleased(t *testing.T) {
	python := fakeRuntime(t, "exit 0", "echo STABLE")
	p := newTestProbeRunner(t, python)

	_ = p.RunProbe(context.Background(), pyReq(entities.BugClassMemoryLeak))
	entries, err := os.ReadDir(p.cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProbeRunner_CancelTearsDownSandbox(t *testing.T) {
	requireProcFS(t)
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	python := fakeRuntime(t, "exit 0", "sleep 30 &\necho $! > "+pidFile+"\nwait\necho STABLE")
	p := newTestProbeRunner(t, python)
	p.cfg.ExecTimeout = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			if data, err := os.ReadFile(pidFile); err == nil && strings.TrimSpace(string(data)) != "" {
				cancel()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	start := time.Now()
	res := p.RunProbe(ctx, pyReq(entities.BugClassMemoryLeak))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, res.Ran)
	assert.Equal(t, entities.ProbeStateNotRun, res.State)
	assert.Equal(t, "Scan cancelled while the probe was running.", res.Reason)

	entries, err := os.ReadDir(p.cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond,
		"background child %d survived cancellation", pid)
}

func TestSandboxEnv(t *testing.T) {
	f := newSandboxFactory(t.TempDir())
	sb, err := f.Acquire(entities.EcosystemNPM)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sb.Dir, "node_modules"), sb.Env()["NODE_PATH"])
	assert.Equal(t, filepath.Join(sb.Dir, "probe.js"), sb.ScriptPath())
	require.NoError(t, f.Release(sb))
	assert.NoDirExists(t, sb.Dir)
}
