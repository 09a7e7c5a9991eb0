package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
)

// artifactResolver is the part of the registry gateway the differ needs
type artifactResolver interface {
	ResolveArtifact(ctx context.Context, pkg, version string, eco entities.Ecosystem) (*entities.ReleaseArtifact, error)
}

// artifactDiffer downloads two releases and compares per-file SHA-256 hashes
type artifactDiffer struct {
	registry   artifactResolver
	downloader *Downloader
	checksums  *checksumVerifier
	signatures *gpgVerifier
	workDir    string
	logger     interfaces.Logger
}

// NewArtifactDiffer creates a differ. signatures may be nil to skip OpenPGP checks;
// workDir "" uses the system temp directory.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewArtifactDiffer(registry artifactResolver, downloader *Downloader, signatures *gpgVerifier, workDir string, logger interfaces.Logger) *artifactDiffer {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &artifactDiffer{
		registry:   registry,
		downloader: downloader,
		checksums:  NewChecksumVerifier(),
		signatures: signatures,
		workDir:    workDir,
		logger:     logger,
	}
}

// DiffReleases compares the file trees of pkg at oldVersion and newVersion
func (d *artifactDiffer) DiffReleases(ctx context.Context, pkg, oldVersion, newVersion string, eco entities.Ecosystem) entities.DiffResult {
	if !eco.Supported() {
		return entities.DiffUnavailable(fmt.Sprintf("File diff not supported for ecosystem: %s", eco))
	}

	tmpDir, err := os.MkdirTemp(d.workDir, "patchverify-diff-*")
	if err != nil {
		d.logger.Error("failed to create diff workspace", interfaces.F("error", err.Error()))
		return entities.DiffUnavailable("Could not create a workspace for the file diff.")
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			d.logger.Warn("failed to remove diff workspace", interfaces.F("dir", tmpDir), interfaces.F("error", err.Error()))
		}
	}()

	var oldRoot, newRoot string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		oldRoot, err = d.fetchTree(gctx, pkg, oldVersion, eco, filepath.Join(tmpDir, "old"))
		return err
	})
	g.Go(func() error {
		var err error
		newRoot, err = d.fetchTree(gctx, pkg, newVersion, eco, filepath.Join(tmpDir, "new"))
		return err
	})
	if err := g.Wait(); err != nil {
		d.logger.Warn("artifact download failed", interfaces.F("package", pkg), interfaces.F("error", err.Error()))
		return entities.DiffUnavailable("Could not download one or both versions.")
	}

	oldHashes, err := hashTree(oldRoot)
	if err != nil {
		return entities.DiffUnavailable(fmt.Sprintf("Could not read %s %s: %v", pkg, oldVersion, err))
	}
	newHashes, err := hashTree(newRoot)
	if err != nil {
		return entities.DiffUnavailable(fmt.Sprintf("Could not read %s %s: %v", pkg, newVersion, err))
	}

	return CompareHashes(oldHashes, newHashes)
}

// fetchTree resolves, downloads, verifies and unpacks one release under dir
func (d *artifactDiffer) fetchTree(ctx context.Context, pkg, version string, eco entities.Ecosystem, dir string) (string, error) {
	artifact, err := d.registry.ResolveArtifact(ctx, pkg, version, eco)
	if err != nil {
		return "", err
	}
	archive, err := d.downloader.FetchArtifact(ctx, artifact, dir, d.checksums)
	if err != nil {
		return "", err
	}
	if d.signatures != nil {
		if err := d.signatures.VerifyArtifact(ctx, archive, artifact); err != nil {
			return "", err
		}
	}
	return d.downloader.Extract(archive, filepath.Join(dir, "extracted"))
}

// hashTree returns sha256 hex digests keyed by slash-separated path relative to root
func hashTree(root string) (map[string]string, error) {
	hashes := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		sum, err := hashFile(path, sha256.New())
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		hashes[filepath.ToSlash(rel)] = hex.EncodeToString(sum)
		return nil
	})
	return hashes, err
}

// CompareHashes classifies every path seen in either tree
func CompareHashes(oldHashes, newHashes map[string]string) entities.DiffResult {
	all := make(map[string]struct{}, len(oldHashes)+len(newHashes))
	for f := range oldHashes {
		all[f] = struct{}{}
	}
	for f := range newHashes {
		all[f] = struct{}{}
	}
	paths := make([]string, 0, len(all))
	for f := range all {
		paths = append(paths, f)
	}
	sort.Strings(paths)

	result := entities.DiffResult{Available: true, TotalFiles: len(paths)}
	for _, f := range paths {
		oldSum, inOld := oldHashes[f]
		newSum, inNew := newHashes[f]
		switch {
		case inOld && inNew && oldSum != newSum:
			result.Changed = append(result.Changed, f)
		case inOld && inNew:
			result.Unchanged = append(result.Unchanged, f)
		case inNew:
			result.Added = append(result.Added, f)
		default:
			result.Removed = append(result.Removed, f)
		}
	}
	return result
}
