package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(env map[string]string) *Loader {
	l := NewLoader(nil)
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig("/tmp/pv")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/tmp/pv/history.db", cfg.HistoryDB)
	assert.Equal(t, 120*time.Second, cfg.Probe.InstallTimeout)
	assert.Equal(t, 30*time.Second, cfg.Probe.ExecTimeout)
	assert.Equal(t, 40, cfg.Fusion.RangeWeight)
}

func TestLoader_MissingDefaultFileIsFine(t *testing.T) {
	home := t.TempDir()
	cfg, err := newTestLoader(map[string]string{"PATCHVERIFY_HOME": home}).Load("")
	require.NoError(t, err)
	assert.Equal(t, home, cfg.HomeDir)
	assert.Equal(t, filepath.Join(home, HistoryFileName), cfg.HistoryDB)
}

func TestLoader_MissingExplicitFileFails(t *testing.T) {
	home := t.TempDir()
	_, err := newTestLoader(map[string]string{"PATCHVERIFY_HOME": home}).Load(filepath.Join(home, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoader_FileThenEnv(t *testing.T) {
	home := t.TempDir()
	yamlContent := `workers: 8
http_timeout: 5s
probe:
  enabled: false
  python: /usr/bin/python3.12
  import_names:
    PyYAML: yaml
fusion:
  probe_weight: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(home, ConfigFileName), []byte(yamlContent), 0600))

	cfg, err := newTestLoader(map[string]string{
		"PATCHVERIFY_HOME":    home,
		"PATCHVERIFY_WORKERS": "2",
		"GITHUB_TOKEN":        "ghp_ambient",
	}).Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers, "env beats file")
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.Probe.Enabled)
	assert.Equal(t, "/usr/bin/python3.12", cfg.Probe.Python)
	assert.Equal(t, "node", cfg.Probe.Node, "unset keys keep defaults")
	assert.Equal(t, "yaml", cfg.Probe.ImportNameFor("PyYAML"))
	assert.Equal(t, "requests", cfg.Probe.ImportNameFor("requests"))
	assert.Equal(t, 30, cfg.Fusion.ProbeWeight)
	assert.Equal(t, 40, cfg.Fusion.RangeWeight)
	assert.Equal(t, "ghp_ambient", cfg.GitHubToken)
}

func TestLoader_TokenPrecedence(t *testing.T) {
	cfg, err := newTestLoader(map[string]string{
		"PATCHVERIFY_HOME":         t.TempDir(),
		"GH_TOKEN":                 "gh",
		"GITHUB_TOKEN":             "github",
		"PATCHVERIFY_GITHUB_TOKEN": "explicit",
	}).Load("")
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.GitHubToken)
}

func TestLoader_MalformedEnvIgnored(t *testing.T) {
	cfg, err := newTestLoader(map[string]string{
		"PATCHVERIFY_HOME":         t.TempDir(),
		"PATCHVERIFY_WORKERS":      "many",
		"PATCHVERIFY_HTTP_TIMEOUT": "soon",
		"PATCHVERIFY_PROBE":        "maybe",
	}).Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.Probe.Enabled)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }},
		{"bad endpoint", func(c *Config) { c.Endpoints.OSV = "not a url" }},
		{"weight above 100", func(c *Config) { c.Fusion.RangeWeight = 101 }},
		{"thresholds out of order", func(c *Config) { c.Fusion.FixedWeak = 0.9 }},
		{"empty python", func(c *Config) { c.Probe.Python = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/tmp/pv")
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveToFile_RoundTripsThroughLoader(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.Workers = 6
	require.NoError(t, cfg.SaveToFile(filepath.Join(home, ConfigFileName)))

	loaded, err := newTestLoader(map[string]string{"PATCHVERIFY_HOME": home}).Load("")
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Workers)
}
