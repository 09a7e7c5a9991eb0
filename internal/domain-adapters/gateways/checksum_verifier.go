package gateways

import (
	"context"
	"crypto/sha1" //nolint:gosec // G505: SRI may legitimately carry sha1 for old npm releases
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// checksumVerifier verifies registry-published digests
type checksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewChecksumVerifier() *checksumVerifier {
	return &checksumVerifier{}
}

// VerifyArtifact checks the digest the registry published for artifact.
// An artifact without a digest passes.
func (v *checksumVerifier) VerifyArtifact(ctx context.Context, filePath string, artifact *entities.ReleaseArtifact) error {
	switch {
	case artifact.SHA256 != "":
		return v.VerifyChecksum(ctx, filePath, artifact.SHA256)
	case artifact.Integrity != "":
		return v.VerifyIntegrity(filePath, artifact.Integrity)
	default:
		return nil
	}
}

// VerifyChecksum verifies a file's SHA256 checksum
func (v *checksumVerifier) VerifyChecksum(_ context.Context, filePath, expectedSum string) error {
	actualSum, err := v.CalculateChecksum(filePath)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actualSum, expectedSum) {
		return fmt.Errorf("%w: checksum mismatch: expected %s, got %s", entities.ErrArtifactIntegrity, expectedSum, actualSum)
	}
	return nil
}

// VerifyIntegrity checks a Subresource Integrity string such as "sha512-<base64>".
// Several space-separated hashes may be given; any match passes.
func (v *checksumVerifier) VerifyIntegrity(filePath, integrity string) error {
	var lastErr error
	checked := false
	for _, token := range strings.Fields(integrity) {
		algo, digest, ok := strings.Cut(token, "-")
		if !ok {
			continue
		}
		var h hash.Hash
		switch algo {
		case "sha512":
			h = sha512.New()
		case "sha384":
			h = sha512.New384()
		case "sha256":
			h = sha256.New()
		case "sha1":
			//nolint:gosec // G401: legacy npm integrity
			h = sha1.New()
		default:
			continue
		}
		checked = true
		sum, err := hashFile(filePath, h)
		if err != nil {
			return err
		}
		// Strip SRI options ("?foo") before comparing
		digest, _, _ = strings.Cut(digest, "?")
		if base64.StdEncoding.EncodeToString(sum) == digest {
			return nil
		}
		lastErr = fmt.Errorf("%w: %s integrity mismatch", entities.ErrArtifactIntegrity, algo)
	}
	if !checked {
		return fmt.Errorf("%w: no supported hash in integrity %q", entities.ErrArtifactIntegrity, integrity)
	}
	return lastErr
}

// CalculateChecksum calculates the SHA256 checksum of a file
func (v *checksumVerifier) CalculateChecksum(filePath string) (string, error) {
	sum, err := hashFile(filePath, sha256.New())
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

func hashFile(filePath string, h hash.Hash) ([]byte, error) {
	//nolint:gosec // G304: File path is produced by the downloader
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash file: %w", err)
	}
	return h.Sum(nil), nil
}
