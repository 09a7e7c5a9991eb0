package main

import (
	"fmt"

	"github.com/ochairo/patchverify/internal/domain-adapters/gateways"
	"github.com/ochairo/patchverify/internal/domain/entities"
	gatewayports "github.com/ochairo/patchverify/internal/domain/interfaces/gateways"
	"github.com/ochairo/patchverify/internal/external-adapters/yaml"
)

// loadCatalog builds the probe catalog, overlaid with the configured catalog file
func (a *app) loadCatalog() (*entities.ProbeCatalog, error) {
	catalog, err := yaml.LoadCatalog(a.cfg.Probe.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load probe catalog: %w", err)
	}
	return catalog, nil
}

// evidenceGateway wires the production gateways from configuration
func (a *app) evidenceGateway(catalog *entities.ProbeCatalog) (gatewayports.EvidenceGateway, error) {
	cfg := a.cfg
	return gateways.NewCompositeEvidenceGateway(gateways.EvidenceOptions{
		HTTP: gateways.HTTPOptions{
			Timeout:           cfg.HTTPTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			UserAgent:         "patchverify/" + version,
		},
		Endpoints: gateways.Endpoints{
			OSV:    cfg.Endpoints.OSV,
			NVD:    cfg.Endpoints.NVD,
			PyPI:   cfg.Endpoints.PyPI,
			NPM:    cfg.Endpoints.NPM,
			GitHub: cfg.Endpoints.GitHub,
		},
		GitHubToken: cfg.GitHubToken,
		Keyring:     cfg.Verify.Keyring,
		Probe: gateways.ProbeRunnerConfig{
			Python:         cfg.Probe.Python,
			Node:           cfg.Probe.Node,
			NPM:            cfg.Probe.NPM,
			InstallTimeout: cfg.Probe.InstallTimeout,
			ExecTimeout:    cfg.Probe.ExecTimeout,
			EntryPoints:    cfg.Probe.EntryPoints,
			ImportNames:    cfg.Probe.ImportNames,
		},
		Catalog: catalog,
		Logger:  a.logger,
	})
}

func parseEcosystemFlag(s string) (entities.Ecosystem, error) {
	eco, ok := entities.ParseEcosystem(s)
	if !ok {
		return entities.EcosystemNone, fmt.Errorf("unsupported ecosystem %q (use pypi or npm)", s)
	}
	return eco, nil
}
