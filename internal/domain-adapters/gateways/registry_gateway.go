package gateways

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
)

const (
	defaultPyPIURL = "https://pypi.org/pypi"
	defaultNPMURL  = "https://registry.npmjs.org"
)

// registryGateway talks to the PyPI JSON API and the npm registry
type registryGateway struct {
	pypiURL string
	npmURL  string
	client  *apiClient
	logger  interfaces.Logger
}

// NewRegistryGateway creates a gateway for the supported package registries
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewRegistryGateway(client *apiClient, pypiURL, npmURL string, logger interfaces.Logger) *registryGateway {
	if pypiURL == "" {
		pypiURL = defaultPyPIURL
	}
	if npmURL == "" {
		npmURL = defaultNPMURL
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &registryGateway{
		pypiURL: strings.TrimSuffix(pypiURL, "/"),
		npmURL:  strings.TrimSuffix(npmURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// DetectEcosystem checks PyPI first, then npm. Unreachable registries count as "not there".
func (g *registryGateway) DetectEcosystem(ctx context.Context, pkg string) (entities.Ecosystem, error) {
	if ok, err := g.client.exists(ctx, g.pypiURL+"/"+url.PathEscape(pkg)+"/json"); err == nil && ok {
		return entities.EcosystemPyPI, nil
	} else if err != nil && ctx.Err() != nil {
		return entities.EcosystemNone, ctx.Err()
	} else if err != nil {
		g.logger.Debug("PyPI lookup failed", interfaces.F("package", pkg), interfaces.F("error", err.Error()))
	}

	if ok, err := g.client.exists(ctx, g.npmURL+"/"+npmPath(pkg)); err == nil && ok {
		return entities.EcosystemNPM, nil
	} else if err != nil && ctx.Err() != nil {
		return entities.EcosystemNone, ctx.Err()
	} else if err != nil {
		g.logger.Debug("npm lookup failed", interfaces.F("package", pkg), interfaces.F("error", err.Error()))
	}

	return entities.EcosystemNone, nil
}

// ResolveArtifact finds the distribution file for pkg at version
func (g *registryGateway) ResolveArtifact(ctx context.Context, pkg, version string, eco entities.Ecosystem) (*entities.ReleaseArtifact, error) {
	switch eco {
	case entities.EcosystemPyPI:
		return g.resolvePyPI(ctx, pkg, version)
	case entities.EcosystemNPM:
		return g.resolveNPM(ctx, pkg, version)
	default:
		return nil, fmt.Errorf("%w: %q", entities.ErrUnsupportedEcosystem, eco)
	}
}

func (g *registryGateway) resolvePyPI(ctx context.Context, pkg, version string) (*entities.ReleaseArtifact, error) {
	var release pypiRelease
	endpoint := fmt.Sprintf("%s/%s/%s/json", g.pypiURL, url.PathEscape(pkg), url.PathEscape(version))
	if err := g.client.getJSON(ctx, endpoint, nil, &release); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s %s not found on PyPI: %w", pkg, version, err)
		}
		return nil, err
	}

	file := pickPyPIFile(release.URLs)
	if file == nil {
		return nil, fmt.Errorf("%w: %s %s has no downloadable files on PyPI", entities.ErrExternalService, pkg, version)
	}

	artifact := &entities.ReleaseArtifact{
		Package:   pkg,
		Version:   version,
		Ecosystem: entities.EcosystemPyPI,
		Filename:  file.Filename,
		URL:       file.URL,
		SHA256:    file.Digests.SHA256,
	}
	if file.HasSig {
		artifact.SignatureURL = file.URL + ".asc"
	}
	return artifact, nil
}

// pickPyPIFile prefers a pure-Python wheel, then any wheel, then the sdist.
// The differ unwraps the sdist's top-level directory, so both layouts compare alike.
func pickPyPIFile(files []pypiFile) *pypiFile {
	var anyWheel, sdist *pypiFile
	for i := range files {
		f := &files[i]
		if f.Yanked {
			continue
		}
		switch {
		case f.PackageType == "bdist_wheel" && strings.HasSuffix(f.Filename, "-none-any.whl"):
			return f
		case f.PackageType == "bdist_wheel":
			if anyWheel == nil {
				anyWheel = f
			}
		case f.PackageType == "sdist" && (strings.HasSuffix(f.Filename, ".tar.gz") || strings.HasSuffix(f.Filename, ".zip")):
			if sdist == nil {
				sdist = f
			}
		}
	}
	if anyWheel != nil {
		return anyWheel
	}
	return sdist
}

func (g *registryGateway) resolveNPM(ctx context.Context, pkg, version string) (*entities.ReleaseArtifact, error) {
	var manifest npmVersionManifest
	endpoint := g.npmURL + "/" + npmPath(pkg) + "/" + url.PathEscape(version)
	if err := g.client.getJSON(ctx, endpoint, nil, &manifest); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s@%s not found on npm: %w", pkg, version, err)
		}
		return nil, err
	}
	if manifest.Dist.Tarball == "" {
		return nil, errors.New("npm manifest has no dist.tarball")
	}

	tarballURL, err := url.Parse(manifest.Dist.Tarball)
	filename := pkg + "-" + version + ".tgz"
	if err == nil {
		if parts := strings.Split(tarballURL.Path, "/"); len(parts) > 0 && parts[len(parts)-1] != "" {
			filename = parts[len(parts)-1]
		}
	}

	return &entities.ReleaseArtifact{
		Package:   pkg,
		Version:   version,
		Ecosystem: entities.EcosystemNPM,
		Filename:  filename,
		URL:       manifest.Dist.Tarball,
		Integrity: manifest.Dist.Integrity,
	}, nil
}

// npmPath escapes a package name for the registry; scoped names keep their @ and encode the slash
func npmPath(pkg string) string {
	if strings.HasPrefix(pkg, "@") {
		return "@" + url.PathEscape(strings.TrimPrefix(pkg, "@"))
	}
	return url.PathEscape(pkg)
}

// pypiRelease is the subset of /pypi/<name>/<version>/json we use
type pypiRelease struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
	URLs []pypiFile `json:"urls"`
}

type pypiFile struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	PackageType string `json:"packagetype"`
	HasSig      bool   `json:"has_sig"`
	Yanked      bool   `json:"yanked"`
	Digests     struct {
		SHA256 string `json:"sha256"`
	} `json:"digests"`
}

// npmVersionManifest is the subset of /<name>/<version> we use
type npmVersionManifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Dist    struct {
		Tarball   string `json:"tarball"`
		Integrity string `json:"integrity"`
		Shasum    string `json:"shasum"`
	} `json:"dist"`
}
