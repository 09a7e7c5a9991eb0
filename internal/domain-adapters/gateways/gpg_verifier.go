package gateways

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
	"github.com/ochairo/patchverify/internal/external-adapters/gpg"
)

// gpgVerifier checks detached OpenPGP signatures published next to artifacts
type gpgVerifier struct {
	verifier   *gpg.Verifier
	downloader *Downloader
	logger     interfaces.Logger
}

// NewGPGVerifier loads keyringPath and returns a verifier for signed artifacts
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier(keyringPath string, downloader *Downloader, logger interfaces.Logger) (*gpgVerifier, error) {
	v := gpg.NewVerifier()
	if err := v.ImportKeyFromFile(keyringPath); err != nil {
		return nil, fmt.Errorf("failed to import GPG keyring: %w", err)
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &gpgVerifier{verifier: v, downloader: downloader, logger: logger}, nil
}

// VerifyArtifact checks filePath against the artifact's signature.
// Unsigned artifacts pass; a bad signature fails with ErrArtifactIntegrity.
func (g *gpgVerifier) VerifyArtifact(ctx context.Context, filePath string, artifact *entities.ReleaseArtifact) error {
	if artifact.SignatureURL == "" {
		return nil
	}

	sig, err := g.downloader.Fetch(ctx, artifact.SignatureURL, 64*1024)
	if err != nil {
		// Registries that advertise signatures sometimes no longer serve them
		g.logger.Warn("signature unavailable", interfaces.F("url", artifact.SignatureURL), interfaces.F("error", err.Error()))
		return nil
	}

	//nolint:gosec // G304: File path is produced by the downloader
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	fingerprint, err := g.verifier.Verify(f, bytes.NewReader(sig))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", entities.ErrArtifactIntegrity, artifact.Filename, err)
	}
	g.logger.Debug("signature verified", interfaces.F("file", artifact.Filename), interfaces.F("signer", fingerprint))
	return nil
}

// KeyringSize returns the number of loaded keys
func (g *gpgVerifier) KeyringSize() int {
	return g.verifier.GetKeyringSize()
}
