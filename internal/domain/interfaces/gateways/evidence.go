package gateways

import (
	"context"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// ArtifactDiffer compares the published artifacts of two releases
type ArtifactDiffer interface {
	// DiffReleases never fails; unavailability is reported in the result
	DiffReleases(ctx context.Context, pkg, oldVersion, newVersion string, eco entities.Ecosystem) entities.DiffResult
}

// ProbeRunner executes one behavioral probe in an isolated sandbox
type ProbeRunner interface {
	// RunProbe never fails; infrastructure problems yield Ran=false with a reason
	RunProbe(ctx context.Context, req entities.ProbeRequest) entities.ProbeResult
}

// VersionResolver looks up the newest published release of a package
type VersionResolver interface {
	LatestVersion(ctx context.Context, pkg string, eco entities.Ecosystem) (string, error)
}

// RegistryGateway resolves and fetches released artifacts
type RegistryGateway interface {
	EcosystemDetector
	VersionResolver

	// ResolveArtifact finds the distribution file for pkg at version
	ResolveArtifact(ctx context.Context, pkg, version string, eco entities.Ecosystem) (*entities.ReleaseArtifact, error)
}

// EvidenceGateway groups every external collaborator a scan needs
type EvidenceGateway interface {
	EcosystemDetector
	VersionResolver
	PromiseSource
	ArtifactDiffer
	ProbeRunner

	// IntelligenceSources returns the vulnerability sources in merge priority order
	IntelligenceSources() []IntelligenceSource
}
