// Package gpg provides OpenPGP detached signature verification.
package gpg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// maxSignatureBytes bounds a detached signature; real ones are under 1KB
const maxSignatureBytes = 10 * 1024

const armoredSignatureHeader = "-----BEGIN PGP SIGNATURE---"

// ErrNoKeys is returned when verifying before any key was imported
var ErrNoKeys = errors.New("no GPG keys imported")

// Verifier checks detached signatures against an in-memory keyring
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{keyring: make(openpgp.EntityList, 0)}
}

// ImportKeyFromFile imports keys from an armored or binary keyring file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is user-provided for GPG key import
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	return v.ImportKeys(data)
}

// ImportKeys imports keys from armored or binary keyring bytes
func (v *Verifier) ImportKeys(data []byte) error {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}
	if len(entities) == 0 {
		return fmt.Errorf("no keys found in file")
	}
	v.keyring = append(v.keyring, entities...)
	return nil
}

// Verify checks sig against data. Armored and binary signatures are accepted.
// It returns the signer's fingerprint on success.
func (v *Verifier) Verify(data io.Reader, sig io.Reader) (string, error) {
	if len(v.keyring) == 0 {
		return "", ErrNoKeys
	}

	sigData, err := io.ReadAll(io.LimitReader(sig, maxSignatureBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read signature: %w", err)
	}
	if len(sigData) > maxSignatureBytes {
		return "", fmt.Errorf("signature exceeds %d bytes", maxSignatureBytes)
	}
	if len(sigData) < 10 {
		return "", fmt.Errorf("signature file too small to be valid GPG signature")
	}

	var signer *openpgp.Entity
	if bytes.HasPrefix(sigData, []byte(armoredSignatureHeader)) {
		signer, err = openpgp.CheckArmoredDetachedSignature(v.keyring, data, bytes.NewReader(sigData), nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(v.keyring, data, bytes.NewReader(sigData), nil)
	}
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}

// VerifyFile checks a detached signature file against a data file
func (v *Verifier) VerifyFile(filePath, sigPath string) (string, error) {
	//nolint:gosec // G304: filePath is user-provided for GPG verification
	dataFile, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer dataFile.Close()

	//nolint:gosec // G304: sigPath is user-provided for GPG verification
	sigFile, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer sigFile.Close()

	return v.Verify(dataFile, sigFile)
}

// GetKeyringSize returns the number of keys in the keyring
func (v *Verifier) GetKeyringSize() int {
	return len(v.keyring)
}
