package gateways

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

func registryServer(t *testing.T) (pypiURL, npmURL string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/requests/json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"info":{"name":"requests"}}`))
	})
	mux.HandleFunc("/pypi/requests/2.31.0/json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"info":{"name":"requests","version":"2.31.0"},"urls":[
			{"filename":"requests-2.31.0.tar.gz","url":"https://files/requests-2.31.0.tar.gz","packagetype":"sdist","digests":{"sha256":"aaa"}},
			{"filename":"requests-2.31.0-py3-none-any.whl","url":"https://files/requests-2.31.0-py3-none-any.whl","packagetype":"bdist_wheel","has_sig":true,"digests":{"sha256":"bbb"}}
		]}`))
	})
	mux.HandleFunc("/pypi/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/npm/lodash", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"lodash"}`))
	})
	mux.HandleFunc("/npm/lodash/4.17.21", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"lodash","version":"4.17.21","dist":{
			"tarball":"https://registry/lodash/-/lodash-4.17.21.tgz","integrity":"sha512-xyz"}}`))
	})
	mux.HandleFunc("/npm/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := newTestServer(t, mux)
	return srv.URL + "/pypi", srv.URL + "/npm"
}

func TestRegistryGateway_DetectEcosystem(t *testing.T) {
	pypi, npm := registryServer(t)
	g := NewRegistryGateway(newTestClient(), pypi, npm, nil)

	tests := map[string]entities.Ecosystem{
		"requests": entities.EcosystemPyPI,
		"lodash":   entities.EcosystemNPM,
		"nginx":    entities.EcosystemNone,
	}
	for pkg, want := range tests {
		got, err := g.DetectEcosystem(context.Background(), pkg)
		require.NoError(t, err, pkg)
		assert.Equal(t, want, got, pkg)
	}
}

func TestRegistryGateway_ResolvePyPIPrefersWheel(t *testing.T) {
	pypi, npm := registryServer(t)
	g := NewRegistryGateway(newTestClient(), pypi, npm, nil)

	a, err := g.ResolveArtifact(context.Background(), "requests", "2.31.0", entities.EcosystemPyPI)
	require.NoError(t, err)
	assert.Equal(t, "requests-2.31.0-py3-none-any.whl", a.Filename)
	assert.Equal(t, "bbb", a.SHA256)
	assert.Equal(t, "https://files/requests-2.31.0-py3-none-any.whl.asc", a.SignatureURL)
}

func TestRegistryGateway_ResolveNPM(t *testing.T) {
	pypi, npm := registryServer(t)
	g := NewRegistryGateway(newTestClient(), pypi, npm, nil)

	a, err := g.ResolveArtifact(context.Background(), "lodash", "4.17.21", entities.EcosystemNPM)
	require.NoError(t, err)
	assert.Equal(t, "lodash-4.17.21.tgz", a.Filename)
	assert.Equal(t, "sha512-xyz", a.Integrity)
	assert.Empty(t, a.SignatureURL)
}

func TestRegistryGateway_ResolveMissingVersion(t *testing.T) {
	pypi, npm := registryServer(t)
	g := NewRegistryGateway(newTestClient(), pypi, npm, nil)

	_, err := g.ResolveArtifact(context.Background(), "requests", "99.0", entities.EcosystemPyPI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found on PyPI")
}

func TestRegistryGateway_UnsupportedEcosystem(t *testing.T) {
	g := NewRegistryGateway(newTestClient(), "", "", nil)
	_, err := g.ResolveArtifact(context.Background(), "x", "1", entities.EcosystemNone)
	assert.ErrorIs(t, err, entities.ErrUnsupportedEcosystem)
}

func TestPickPyPIFile(t *testing.T) {
	sdist := pypiFile{Filename: "p-1.0.tar.gz", PackageType: "sdist"}
	platWheel := pypiFile{Filename: "p-1.0-cp311-cp311-manylinux_x86_64.whl", PackageType: "bdist_wheel"}
	pureWheel := pypiFile{Filename: "p-1.0-py3-none-any.whl", PackageType: "bdist_wheel"}
	yanked := pypiFile{Filename: "p-1.0-py2-none-any.whl", PackageType: "bdist_wheel", Yanked: true}

	assert.Equal(t, pureWheel.Filename, pickPyPIFile([]pypiFile{sdist, platWheel, pureWheel}).Filename)
	assert.Equal(t, platWheel.Filename, pickPyPIFile([]pypiFile{sdist, platWheel}).Filename)
	assert.Equal(t, sdist.Filename, pickPyPIFile([]pypiFile{yanked, sdist}).Filename)
	assert.Nil(t, pickPyPIFile(nil))
}

func TestNPMPath_Scoped(t *testing.T) {
	assert.Equal(t, "@types%2Fnode", npmPath("@types/node"))
	assert.Equal(t, "express", npmPath("express"))
}
