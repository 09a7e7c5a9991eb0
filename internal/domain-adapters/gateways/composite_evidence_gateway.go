package gateways

import (
	"context"
	"fmt"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
	"github.com/ochairo/patchverify/internal/domain/interfaces/gateways"
)

// Endpoints holds the base URLs of external services; empty values use the public defaults
type Endpoints struct {
	OSV    string
	NVD    string
	PyPI   string
	NPM    string
	GitHub string
}

// EvidenceOptions configures the composite evidence gateway
type EvidenceOptions struct {
	HTTP        HTTPOptions
	Endpoints   Endpoints
	GitHubToken string
	// Keyring enables OpenPGP verification of signed artifacts when set
	Keyring string
	// WorkDir holds diff workspaces; "" uses the system temp directory
	WorkDir string
	Probe   ProbeRunnerConfig
	Catalog *entities.ProbeCatalog
	Logger  interfaces.Logger
}

// compositeEvidenceGateway implements EvidenceGateway by composing the individual gateways
type compositeEvidenceGateway struct {
	registry gateways.RegistryGateway
	promises gateways.PromiseSource
	differ   gateways.ArtifactDiffer
	prober   gateways.ProbeRunner
	sources  []gateways.IntelligenceSource
}

// NewCompositeEvidenceGateway wires every production gateway around one rate-limited client
func NewCompositeEvidenceGateway(opts EvidenceOptions) (gateways.EvidenceGateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	httpOpts := opts.HTTP
	httpOpts.Logger = logger
	client := NewAPIClient(httpOpts)

	registry := NewRegistryGateway(client, opts.Endpoints.PyPI, opts.Endpoints.NPM, logger)
	downloader := NewDownloader(client, logger)

	var signatures *gpgVerifier
	if opts.Keyring != "" {
		v, err := NewGPGVerifier(opts.Keyring, downloader, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure signature verification: %w", err)
		}
		signatures = v
	}

	github := NewHTTPGitHubGateway(client, opts.Endpoints.GitHub, opts.GitHubToken, logger)
	probeCfg := opts.Probe
	if probeCfg.WorkDir == "" {
		probeCfg.WorkDir = opts.WorkDir
	}

	return NewCompositeEvidenceGatewayWithDeps(
		registry,
		NewReleaseNotesSource(github, logger),
		NewArtifactDiffer(registry, downloader, signatures, opts.WorkDir, logger),
		NewProbeRunner(opts.Catalog, probeCfg, logger),
		NewOSVGateway(client, opts.Endpoints.OSV),
		NewNVDGateway(client, opts.Endpoints.NVD),
	), nil
}

// NewCompositeEvidenceGatewayWithDeps creates a composite gateway with custom dependencies.
// Sources are merged in the order given; the first is authoritative for range data.
func NewCompositeEvidenceGatewayWithDeps(
	registry gateways.RegistryGateway,
	promises gateways.PromiseSource,
	differ gateways.ArtifactDiffer,
	prober gateways.ProbeRunner,
	sources ...gateways.IntelligenceSource,
) gateways.EvidenceGateway {
	return &compositeEvidenceGateway{
		registry: registry,
		promises: promises,
		differ:   differ,
		prober:   prober,
		sources:  sources,
	}
}

// DetectEcosystem determines which registry publishes pkg
func (c *compositeEvidenceGateway) DetectEcosystem(ctx context.Context, pkg string) (entities.Ecosystem, error) {
	return c.registry.DetectEcosystem(ctx, pkg)
}

// LatestVersion returns the newest release pkg has published
func (c *compositeEvidenceGateway) LatestVersion(ctx context.Context, pkg string, eco entities.Ecosystem) (string, error) {
	return c.registry.LatestVersion(ctx, pkg, eco)
}

// CollectPromises returns the promises made by app at version
func (c *compositeEvidenceGateway) CollectPromises(ctx context.Context, app, version string) ([]entities.Promise, error) {
	return c.promises.CollectPromises(ctx, app, version)
}

// DiffReleases compares two releases' artifacts
func (c *compositeEvidenceGateway) DiffReleases(ctx context.Context, pkg, oldVersion, newVersion string, eco entities.Ecosystem) entities.DiffResult {
	return c.differ.DiffReleases(ctx, pkg, oldVersion, newVersion, eco)
}

// RunProbe runs one behavioral probe
func (c *compositeEvidenceGateway) RunProbe(ctx context.Context, req entities.ProbeRequest) entities.ProbeResult {
	return c.prober.RunProbe(ctx, req)
}

// IntelligenceSources returns the vulnerability sources in merge priority order
func (c *compositeEvidenceGateway) IntelligenceSources() []gateways.IntelligenceSource {
	out := make([]gateways.IntelligenceSource, len(c.sources))
	copy(out, c.sources)
	return out
}
