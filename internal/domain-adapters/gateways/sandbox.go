package gateways

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// sandbox is a scoped, exclusive install location for one probe run
type sandbox struct {
	Dir       string
	LibDir    string
	Ecosystem entities.Ecosystem
}

// Env returns the module search path isolation for the sandbox
func (s *sandbox) Env() map[string]string {
	switch s.Ecosystem {
	case entities.EcosystemPyPI:
		return map[string]string{
			"PYTHONPATH":                    s.LibDir,
			"PYTHONNOUSERSITE":              "1",
			"PYTHONDONTWRITEBYTECODE":       "1",
			"PIP_DISABLE_PIP_VERSION_CHECK": "1",
		}
	case entities.EcosystemNPM:
		return map[string]string{
			"NODE_PATH":                  s.LibDir,
			"npm_config_update_notifier": "false",
			"npm_config_fund":            "false",
			"npm_config_audit":           "false",
		}
	default:
		return nil
	}
}

// ScriptPath is where the probe script is written
func (s *sandbox) ScriptPath() string {
	if s.Ecosystem == entities.EcosystemNPM {
		return filepath.Join(s.Dir, "probe.js")
	}
	return filepath.Join(s.Dir, "probe.py")
}

// sandboxFactory hands out fresh sandbox directories
type sandboxFactory struct {
	baseDir string
}

func newSandboxFactory(baseDir string) *sandboxFactory {
	return &sandboxFactory{baseDir: baseDir}
}

// Acquire creates a new sandbox; the caller must Release it
func (f *sandboxFactory) Acquire(eco entities.Ecosystem) (*sandbox, error) {
	dir, err := os.MkdirTemp(f.baseDir, "patchverify-probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create sandbox: %w", entities.ErrProbeInfrastructure, err)
	}
	sb := &sandbox{Dir: dir, Ecosystem: eco}
	switch eco {
	case entities.EcosystemNPM:
		sb.LibDir = filepath.Join(dir, "node_modules")
	default:
		sb.LibDir = filepath.Join(dir, "site")
	}
	if err := os.MkdirAll(sb.LibDir, 0750); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: failed to create sandbox: %w", entities.ErrProbeInfrastructure, err)
	}
	return sb, nil
}

// Release removes the sandbox and everything installed into it
func (f *sandboxFactory) Release(sb *sandbox) error {
	if sb == nil {
		return nil
	}
	return os.RemoveAll(sb.Dir)
}
