package gateways

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
)

const (
	// maxArtifactBytes caps a single download
	maxArtifactBytes = 512 << 20
	// maxExtractedBytes caps the total unpacked size of one archive (decompression bombs)
	maxExtractedBytes = 1 << 30
)

// Downloader fetches release artifacts and unpacks them
type Downloader struct {
	client *apiClient
	logger interfaces.Logger
}

// NewDownloader creates a new downloader sharing the API client's rate limit
func NewDownloader(client *apiClient, logger interfaces.Logger) *Downloader {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Downloader{client: client, logger: logger}
}

// Download streams url into dest and returns the number of bytes written
func (d *Downloader) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &statusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	//nolint:gosec // G304: File path dest is function parameter for download destination
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	//nolint:errcheck // Defer close on file being written
	defer out.Close()

	written, err := io.Copy(out, io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return written, fmt.Errorf("failed to write file: %w", err)
	}
	if written > maxArtifactBytes {
		return written, fmt.Errorf("artifact exceeds %d bytes", int64(maxArtifactBytes))
	}

	d.logger.Debug("downloaded artifact", interfaces.F("file", filepath.Base(dest)), interfaces.F("bytes", written))
	return written, nil
}

// Fetch returns the body of a small resource such as a detached signature
func (d *Downloader) Fetch(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.client.do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// Extract unpacks a .tar.gz, .tgz, .zip or .whl archive into destDir.
// It returns the package root: the single top-level directory when the
// archive has one (sdists, npm's package/), destDir otherwise (wheels).
func (d *Downloader) Extract(archivePath, destDir string) (string, error) {
	name := strings.ToLower(archivePath)
	var err error
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		err = d.extractTarGz(archivePath, destDir)
	case strings.HasSuffix(name, ".zip"), strings.HasSuffix(name, ".whl"):
		err = d.extractZip(archivePath, destDir)
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
	if err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(destDir, entries[0].Name()), nil
	}
	return destDir, nil
}

// safeJoin resolves an archive member path inside destDir
func safeJoin(destDir, member string) (string, error) {
	//nolint:gosec // G305: Path traversal validated below
	target := filepath.Join(destDir, member)
	cleanDest := filepath.Clean(destDir)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file path in archive: %s", member)
	}
	return target, nil
}

// writeMember copies one archive member to target, charging its size against budget
func writeMember(target string, r io.Reader, budget *int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	//nolint:gosec // G304: target validated by safeJoin
	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(outFile, io.LimitReader(r, *budget+1))
	if err != nil {
		_ = outFile.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	*budget -= n
	if *budget < 0 {
		_ = outFile.Close()
		return fmt.Errorf("archive expands beyond %d bytes", int64(maxExtractedBytes))
	}
	return outFile.Close()
}

// extractTarGz extracts regular files and directories; links are skipped
// because only file contents take part in a diff.
func (d *Downloader) extractTarGz(tarPath, destDir string) error {
	//nolint:gosec // G304: File path tarPath is function parameter for extraction
	file, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("failed to open tar.gz: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	//nolint:errcheck // Defer close on gzip reader
	defer gzr.Close()

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	budget := int64(maxExtractedBytes)
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeMember(target, tr, &budget); err != nil {
				return err
			}
		default:
			d.logger.Debug("skipping archive member", interfaces.F("name", header.Name), interfaces.F("type", string(header.Typeflag)))
		}
	}
	return nil
}

func (d *Downloader) extractZip(zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	budget := int64(maxExtractedBytes)
	for _, f := range zr.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		err = writeMember(target, rc, &budget)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// FetchArtifact downloads artifact into dir and checks its published digest
func (d *Downloader) FetchArtifact(ctx context.Context, artifact *entities.ReleaseArtifact, dir string, checksums *checksumVerifier) (string, error) {
	dest := filepath.Join(dir, filepath.Base(artifact.Filename))
	if _, err := d.Download(ctx, artifact.URL, dest); err != nil {
		return "", err
	}
	if err := checksums.VerifyArtifact(ctx, dest, artifact); err != nil {
		return "", err
	}
	return dest, nil
}
