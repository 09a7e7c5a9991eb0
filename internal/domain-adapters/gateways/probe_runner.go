package gateways

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
	"github.com/ochairo/patchverify/internal/domain/services"
)

// ProbeRunnerConfig configures runtimes, limits and per-package overrides
type ProbeRunnerConfig struct {
	Python         string
	Node           string
	NPM            string
	InstallTimeout time.Duration
	ExecTimeout    time.Duration
	// EntryPoints overrides the spec's entry points for a package
	EntryPoints map[string][]string
	// ImportNames maps a distribution name to its importable module
	ImportNames map[string]string
	// WorkDir holds sandboxes; "" uses the system temp directory
	WorkDir string
}

// probeRunner installs a release into a fresh sandbox and runs one catalog probe against it
type probeRunner struct {
	catalog   *entities.ProbeCatalog
	commands  *CommandRunner
	sandboxes *sandboxFactory
	cfg       ProbeRunnerConfig
	logger    interfaces.Logger
	lookPath  func(string) (string, error)
}

// NewProbeRunner creates a ProbeRunner over an immutable catalog
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewProbeRunner(catalog *entities.ProbeCatalog, cfg ProbeRunnerConfig, logger interfaces.Logger) *probeRunner {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Node == "" {
		cfg.Node = "node"
	}
	if cfg.NPM == "" {
		cfg.NPM = "npm"
	}
	if cfg.InstallTimeout <= 0 {
		cfg.InstallTimeout = 120 * time.Second
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &probeRunner{
		catalog:   catalog,
		commands:  NewCommandRunner(),
		sandboxes: newSandboxFactory(cfg.WorkDir),
		cfg:       cfg,
		logger:    logger,
		lookPath:  exec.LookPath,
	}
}

// runtimes holds the resolved executables for one ecosystem
type runtimes struct {
	interpreter string
	installer   string
}

// RunProbe walks NOT_RUN → INSTALLING → RUNNING → {COMPLETED, TIMEOUT, INSTALL_FAILED}.
// It never returns an error; every failure is a result with a reason.
func (p *probeRunner) RunProbe(ctx context.Context, req entities.ProbeRequest) entities.ProbeResult {
	result := p.runProbe(ctx, req)
	result.Version = req.Version
	p.logger.Debug("probe finished",
		interfaces.F("package", req.Package),
		interfaces.F("version", req.Version),
		interfaces.F("bug_class", string(req.BugClass)),
		interfaces.F("state", string(result.State)),
		interfaces.F("outcome", string(result.Outcome)))
	return result
}

func (p *probeRunner) runProbe(ctx context.Context, req entities.ProbeRequest) entities.ProbeResult {
	spec, ok := p.catalog.Lookup(req.BugClass)
	if !ok {
		return entities.NotRun(fmt.Sprintf("No probe defined for bug class '%s'.", req.BugClass))
	}
	if !req.Ecosystem.Supported() {
		return entities.NotRun(fmt.Sprintf("Behavioral probing not supported for ecosystem '%s'.", req.Ecosystem))
	}
	script := spec.Script(req.Ecosystem)
	if script == "" {
		return entities.NotRun(fmt.Sprintf("No %s probe defined for bug class '%s'.", runtimeLabel(req.Ecosystem), req.BugClass))
	}

	rt, err := p.resolveRuntimes(req.Ecosystem)
	if err != nil {
		return entities.NotRun(err.Error())
	}

	sb, err := p.sandboxes.Acquire(req.Ecosystem)
	if err != nil {
		return entities.NotRun(err.Error())
	}
	defer func() {
		if err := p.sandboxes.Release(sb); err != nil {
			p.logger.Warn("failed to release sandbox", interfaces.F("dir", sb.Dir), interfaces.F("error", err.Error()))
		}
	}()

	if err := os.WriteFile(sb.ScriptPath(), []byte(script), 0600); err != nil {
		return entities.NotRun(fmt.Sprintf("Could not write probe script: %v", err))
	}

	p.transition(req, entities.ProbeStateInstalling)
	install := p.commands.Run(ctx, p.installCommand(req, rt, sb))
	if !install.Success {
		if ctx.Err() != nil {
			return entities.NotRun("Scan cancelled before the probe ran.")
		}
		res := entities.NotRun(installFailureReason(req, install, p.cfg.InstallTimeout))
		res.State = entities.ProbeStateInstallFailed
		p.logger.Debug("probe install failed",
			interfaces.F("package", req.Package),
			interfaces.F("stderr", tail(install.Stderr, 300)))
		return res
	}

	p.transition(req, entities.ProbeStateRunning)
	run := p.commands.Run(ctx, CommandSpec{
		Path:        rt.interpreter,
		Args:        []string{sb.ScriptPath(), p.importName(req), strings.Join(p.entryPoints(req.Package, spec), ",")},
		WorkingDir:  sb.Dir,
		Env:         sb.Env(),
		Timeout:     p.cfg.ExecTimeout,
		Description: "probe " + string(req.BugClass),
	})

	switch {
	case run.TimedOut:
		res := services.ProbeTimedOut(p.cfg.ExecTimeout)
		res.Duration = run.Duration
		return res
	case ctx.Err() != nil:
		return entities.NotRun("Scan cancelled while the probe was running.")
	}

	res := services.InterpretProbeOutput(spec, run.Stdout)
	res.Duration = run.Duration
	if res.Outcome == entities.OutcomeUnknown && strings.TrimSpace(run.Stdout) == "" && run.ExitCode != 0 {
		res.Message = fmt.Sprintf("Probe exited with code %d without a result token.", run.ExitCode)
	}
	return res
}

func (p *probeRunner) transition(req entities.ProbeRequest, state entities.ProbeState) {
	p.logger.Debug("probe state",
		interfaces.F("package", req.Package),
		interfaces.F("version", req.Version),
		interfaces.F("state", string(state)))
}

func (p *probeRunner) resolveRuntimes(eco entities.Ecosystem) (runtimes, error) {
	switch eco {
	case entities.EcosystemPyPI:
		python, err := p.lookPath(p.cfg.Python)
		if err != nil {
			return runtimes{}, fmt.Errorf("%s not found in PATH; cannot run Python probes", p.cfg.Python)
		}
		return runtimes{interpreter: python, installer: python}, nil
	case entities.EcosystemNPM:
		node, nodeErr := p.lookPath(p.cfg.Node)
		npm, npmErr := p.lookPath(p.cfg.NPM)
		if nodeErr != nil || npmErr != nil {
			return runtimes{}, fmt.Errorf("node/npm not found in PATH; cannot run Node.js probes")
		}
		return runtimes{interpreter: node, installer: npm}, nil
	default:
		return runtimes{}, fmt.Errorf("%w: %s", entities.ErrUnsupportedEcosystem, eco)
	}
}

func (p *probeRunner) installCommand(req entities.ProbeRequest, rt runtimes, sb *sandbox) CommandSpec {
	spec := CommandSpec{
		Path:        rt.installer,
		WorkingDir:  sb.Dir,
		Env:         sb.Env(),
		Timeout:     p.cfg.InstallTimeout,
		Description: "install " + req.Package,
	}
	if req.Ecosystem == entities.EcosystemNPM {
		spec.Args = []string{"install", req.Package + "@" + req.Version,
			"--prefix", sb.Dir, "--quiet", "--no-save", "--ignore-scripts"}
		return spec
	}
	spec.Args = []string{"-m", "pip", "install", req.Package + "==" + req.Version,
		"--target", sb.LibDir, "--quiet", "--no-input", "--break-system-packages"}
	return spec
}

// importName is what the probe script imports or requires
func (p *probeRunner) importName(req entities.ProbeRequest) string {
	if name, ok := p.cfg.ImportNames[req.Package]; ok && name != "" {
		return name
	}
	if req.Ecosystem == entities.EcosystemPyPI {
		return strings.ReplaceAll(req.Package, "-", "_")
	}
	return req.Package
}

func (p *probeRunner) entryPoints(pkg string, spec entities.ProbeSpec) []string {
	if override := p.cfg.EntryPoints[pkg]; len(override) > 0 {
		return override
	}
	return spec.EntryPoints
}

func installFailureReason(req entities.ProbeRequest, res *CommandResult, limit time.Duration) string {
	pin := req.Package + "==" + req.Version
	if req.Ecosystem == entities.EcosystemNPM {
		pin = req.Package + "@" + req.Version
	}
	if res.TimedOut {
		return fmt.Sprintf("Timed out installing %s for probing (>%s).", pin, limit)
	}
	return fmt.Sprintf("Could not install %s for probing.", pin)
}

func runtimeLabel(eco entities.Ecosystem) string {
	if eco == entities.EcosystemNPM {
		return "Node.js"
	}
	return "Python"
}

// tail returns the last n bytes of s
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
