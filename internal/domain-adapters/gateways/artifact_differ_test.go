package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

type stubResolver struct {
	artifacts map[string]*entities.ReleaseArtifact
}

func (s *stubResolver) ResolveArtifact(_ context.Context, _ string, version string, _ entities.Ecosystem) (*entities.ReleaseArtifact, error) {
	a, ok := s.artifacts[version]
	if !ok {
		return nil, errors.New("no such version")
	}
	return a, nil
}

func TestCompareHashes(t *testing.T) {
	old := map[string]string{"a.py": "1", "b.py": "2", "gone.py": "3"}
	cur := map[string]string{"a.py": "1", "b.py": "9", "new.py": "4"}

	got := CompareHashes(old, cur)
	assert.True(t, got.Available)
	assert.Equal(t, []string{"b.py"}, got.Changed)
	assert.Equal(t, []string{"a.py"}, got.Unchanged)
	assert.Equal(t, []string{"new.py"}, got.Added)
	assert.Equal(t, []string{"gone.py"}, got.Removed)
	assert.Equal(t, 4, got.TotalFiles)
	assert.Equal(t, []string{"b.py", "new.py", "gone.py"}, got.Modified())
}

func TestCompareHashes_Empty(t *testing.T) {
	got := CompareHashes(nil, nil)
	assert.True(t, got.Available)
	assert.Zero(t, got.TotalFiles)
}

func diffFixture(t *testing.T, oldFiles, newFiles map[string]string, corruptNew bool) (*stubResolver, string) {
	t.Helper()
	oldTar := buildTarGz(t, oldFiles)
	newTar := buildTarGz(t, newFiles)
	mux := http.NewServeMux()
	mux.HandleFunc("/pkg-1.0.tgz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(oldTar) })
	mux.HandleFunc("/pkg-1.1.tgz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(newTar) })
	srv := newTestServer(t, mux)

	digest := func(b []byte) string {
		s := sha256.Sum256(b)
		return hex.EncodeToString(s[:])
	}
	newDigest := digest(newTar)
	if corruptNew {
		newDigest = digest([]byte("something else"))
	}
	return &stubResolver{artifacts: map[string]*entities.ReleaseArtifact{
		"1.0": {Filename: "pkg-1.0.tgz", URL: srv.URL + "/pkg-1.0.tgz", SHA256: digest(oldTar)},
		"1.1": {Filename: "pkg-1.1.tgz", URL: srv.URL + "/pkg-1.1.tgz", SHA256: newDigest},
	}}, t.TempDir()
}

func TestArtifactDiffer_DiffReleases(t *testing.T) {
	resolver, work := diffFixture(t,
		map[string]string{"pkg-1.0/pkg/core.py": "old", "pkg-1.0/pkg/util.py": "same", "pkg-1.0/README": "r"},
		map[string]string{"pkg-1.1/pkg/core.py": "new", "pkg-1.1/pkg/util.py": "same", "pkg-1.1/pkg/extra.py": "x"},
		false)
	d := NewArtifactDiffer(resolver, NewDownloader(newTestClient(), nil), nil, work, nil)

	got := d.DiffReleases(context.Background(), "pkg", "1.0", "1.1", entities.EcosystemPyPI)
	require.True(t, got.Available, got.Reason)
	assert.Equal(t, []string{"pkg/core.py"}, got.Changed, "version-named top directories are unwrapped")
	assert.Equal(t, []string{"pkg/util.py"}, got.Unchanged)
	assert.Equal(t, []string{"pkg/extra.py"}, got.Added)
	assert.Equal(t, []string{"README"}, got.Removed)
	assert.Equal(t, 4, got.TotalFiles)
}

func TestArtifactDiffer_ChecksumMismatch(t *testing.T) {
	resolver, work := diffFixture(t,
		map[string]string{"package/index.js": "a"},
		map[string]string{"package/index.js": "b"},
		true)
	d := NewArtifactDiffer(resolver, NewDownloader(newTestClient(), nil), nil, work, nil)

	got := d.DiffReleases(context.Background(), "pkg", "1.0", "1.1", entities.EcosystemNPM)
	assert.False(t, got.Available)
	assert.Equal(t, "Could not download one or both versions.", got.Reason)
}

func TestArtifactDiffer_MissingVersion(t *testing.T) {
	resolver, work := diffFixture(t, map[string]string{"a": "1"}, map[string]string{"a": "2"}, false)
	d := NewArtifactDiffer(resolver, NewDownloader(newTestClient(), nil), nil, work, nil)

	got := d.DiffReleases(context.Background(), "pkg", "0.9", "1.1", entities.EcosystemPyPI)
	assert.False(t, got.Available)
	assert.Equal(t, "Could not download one or both versions.", got.Reason)
}

func TestArtifactDiffer_UnsupportedEcosystem(t *testing.T) {
	d := NewArtifactDiffer(&stubResolver{}, NewDownloader(newTestClient(), nil), nil, "", nil)

	got := d.DiffReleases(context.Background(), "serde", "1.0", "1.1", entities.Ecosystem("cargo"))
	assert.False(t, got.Available)
	assert.Equal(t, "File diff not supported for ecosystem: cargo", got.Reason)
}
