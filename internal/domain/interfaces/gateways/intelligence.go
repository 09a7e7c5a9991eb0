// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// IntelligenceSource looks up known vulnerabilities for a package version
type IntelligenceSource interface {
	// Name identifies the source in notes and logs ("osv", "nvd")
	Name() string

	// Query returns the records affecting pkg at version
	Query(ctx context.Context, pkg, version string, eco entities.Ecosystem) ([]entities.VulnerabilityRecord, error)
}

// PromiseSource collects fix promises for a release
type PromiseSource interface {
	// CollectPromises returns the promises made by app at version
	CollectPromises(ctx context.Context, app, version string) ([]entities.Promise, error)
}

// EcosystemDetector determines which registry publishes a package
type EcosystemDetector interface {
	// DetectEcosystem returns EcosystemNone when no supported registry knows the package
	DetectEcosystem(ctx context.Context, pkg string) (entities.Ecosystem, error)
}
