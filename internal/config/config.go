// Package config provides layered configuration for patchverify.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ochairo/patchverify/internal/domain/services"
)

const (
	// HomeDirName is the per-user state directory under $HOME
	HomeDirName = ".patchverify"
	// ConfigFileName is the user config file inside the state directory
	ConfigFileName = "config.yaml"
	// HistoryFileName is the sqlite history database inside the state directory
	HistoryFileName = "history.db"
)

// Config is the complete patchverify configuration
type Config struct {
	HomeDir           string        `yaml:"home_dir" validate:"required"`
	HistoryDB         string        `yaml:"history_db" validate:"required"`
	GitHubToken       string        `yaml:"github_token"`
	Workers           int           `yaml:"workers" validate:"gte=1,lte=64"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" validate:"gt=0"`
	ScanTimeout       time.Duration `yaml:"scan_timeout" validate:"gte=0"`
	MetricsFile       string        `yaml:"metrics_file"`

	Probe     ProbeConfig           `yaml:"probe"`
	Fusion    services.FusionPolicy `yaml:"fusion"`
	Verify    VerifyConfig          `yaml:"verify"`
	Endpoints EndpointsConfig       `yaml:"endpoints"`
}

// ProbeConfig configures behavioral probing
type ProbeConfig struct {
	Enabled        bool          `yaml:"enabled"`
	InstallTimeout time.Duration `yaml:"install_timeout" validate:"gt=0"`
	ExecTimeout    time.Duration `yaml:"exec_timeout" validate:"gt=0"`
	Python         string        `yaml:"python" validate:"required"`
	Node           string        `yaml:"node" validate:"required"`
	NPM            string        `yaml:"npm" validate:"required"`
	// CatalogFile replaces the built-in probe catalog when set
	CatalogFile string `yaml:"catalog_file"`
	// EntryPoints overrides the functions probed, per package name
	EntryPoints map[string][]string `yaml:"entry_points"`
	// ImportNames maps a distribution name to its importable module (PyYAML -> yaml)
	ImportNames map[string]string `yaml:"import_names"`
}

// VerifyConfig configures artifact signature verification
type VerifyConfig struct {
	// Keyring is an armored OpenPGP keyring; detached signatures are checked when set
	Keyring string `yaml:"keyring"`
}

// EndpointsConfig holds the base URLs of external services
type EndpointsConfig struct {
	OSV    string `yaml:"osv" validate:"required,url"`
	NVD    string `yaml:"nvd" validate:"required,url"`
	PyPI   string `yaml:"pypi" validate:"required,url"`
	NPM    string `yaml:"npm" validate:"required,url"`
	GitHub string `yaml:"github" validate:"required,url"`
}

// DefaultConfig returns a Config with sensible defaults rooted at homeDir
func DefaultConfig(homeDir string) *Config {
	return &Config{
		HomeDir:           homeDir,
		HistoryDB:         filepath.Join(homeDir, HistoryFileName),
		Workers:           4,
		RequestsPerSecond: 5,
		HTTPTimeout:       15 * time.Second,
		Probe: ProbeConfig{
			Enabled:        true,
			InstallTimeout: 120 * time.Second,
			ExecTimeout:    30 * time.Second,
			Python:         "python3",
			Node:           "node",
			NPM:            "npm",
		},
		Fusion: services.DefaultFusionPolicy(),
		Endpoints: EndpointsConfig{
			OSV:    "https://api.osv.dev/v1/query",
			NVD:    "https://services.nvd.nist.gov/rest/json/cves/2.0",
			PyPI:   "https://pypi.org/pypi",
			NPM:    "https://registry.npmjs.org",
			GitHub: "https://api.github.com",
		},
	}
}

var validate = validator.New()

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	f := c.Fusion
	if f.UnconfirmedFloor > f.FixedWeak || f.FixedWeak > f.FixedStrong {
		return fmt.Errorf("invalid configuration: fusion thresholds must satisfy unconfirmed_floor <= fixed_weak <= fixed_strong")
	}
	return nil
}

// LoadFromFile overlays a YAML file onto c; keys absent from the file keep their value
func (c *Config) LoadFromFile(path string) error {
	//nolint:gosec // G304: config path is chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile writes the configuration as YAML, creating parent directories
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// EntryPointsFor returns the configured entry point override for a package
func (p ProbeConfig) EntryPointsFor(pkg string) []string {
	return p.EntryPoints[pkg]
}

// ImportNameFor returns the module to import for a package, defaulting to its name
func (p ProbeConfig) ImportNameFor(pkg string) string {
	if name, ok := p.ImportNames[pkg]; ok && name != "" {
		return name
	}
	return pkg
}
