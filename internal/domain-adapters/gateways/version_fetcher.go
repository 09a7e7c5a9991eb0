package gateways

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
)

// npmPackument is the part of the npm package document that names release channels
type npmPackument struct {
	Name     string            `json:"name"`
	DistTags map[string]string `json:"dist-tags"`
}

// LatestVersion returns the version the registry currently marks as latest
func (g *registryGateway) LatestVersion(ctx context.Context, pkg string, eco entities.Ecosystem) (string, error) {
	var (
		latest string
		err    error
	)
	switch eco {
	case entities.EcosystemPyPI:
		latest, err = g.latestPyPI(ctx, pkg)
	case entities.EcosystemNPM:
		latest, err = g.latestNPM(ctx, pkg)
	default:
		return "", fmt.Errorf("%w: %q", entities.ErrUnsupportedEcosystem, eco)
	}
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("%w: %s publishes no latest version on %s", entities.ErrExternalService, pkg, eco)
	}
	g.logger.Debug("resolved latest version", interfaces.F("package", pkg), interfaces.F("version", latest))
	return latest, nil
}

func (g *registryGateway) latestPyPI(ctx context.Context, pkg string) (string, error) {
	var release pypiRelease
	endpoint := g.pypiURL + "/" + url.PathEscape(pkg) + "/json"
	if err := g.client.getJSON(ctx, endpoint, nil, &release); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%s not found on PyPI: %w", pkg, err)
		}
		return "", err
	}
	return strings.TrimSpace(release.Info.Version), nil
}

func (g *registryGateway) latestNPM(ctx context.Context, pkg string) (string, error) {
	var doc npmPackument
	endpoint := g.npmURL + "/" + npmPath(pkg)
	if err := g.client.getJSON(ctx, endpoint, map[string]string{"Accept": "application/vnd.npm.install-v1+json"}, &doc); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%s not found on npm: %w", pkg, err)
		}
		return "", err
	}
	return strings.TrimSpace(doc.DistTags[entities.LatestVersion]), nil
}
