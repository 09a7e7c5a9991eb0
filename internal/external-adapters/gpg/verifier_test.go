package gpg

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// newSigner creates a throwaway key and writes its armored public half to dir
func newSigner(t *testing.T, dir string) (*openpgp.Entity, string) {
	t.Helper()
	entity, err := openpgp.NewEntity("Release Bot", "test", "release@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode: %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("armor close: %v", err)
	}

	keyPath := filepath.Join(dir, "release.asc")
	if err := os.WriteFile(keyPath, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return entity, keyPath
}

func TestVerifier_VerifyArmoredSignature(t *testing.T) {
	dir := t.TempDir()
	signer, keyPath := newSigner(t, dir)

	content := []byte("package contents")
	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, signer, bytes.NewReader(content), nil); err != nil {
		t.Fatalf("ArmoredDetachSign: %v", err)
	}

	v := NewVerifier()
	if err := v.ImportKeyFromFile(keyPath); err != nil {
		t.Fatalf("ImportKeyFromFile: %v", err)
	}
	if v.GetKeyringSize() != 1 {
		t.Errorf("keyring size = %d, want 1", v.GetKeyringSize())
	}

	fp, err := v.Verify(bytes.NewReader(content), bytes.NewReader(sig.Bytes()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := string(fpHex(signer))
	if fp != want {
		t.Errorf("fingerprint = %s, want %s", fp, want)
	}
}

func TestVerifier_VerifyBinarySignatureFromFiles(t *testing.T) {
	dir := t.TempDir()
	signer, keyPath := newSigner(t, dir)

	dataPath := filepath.Join(dir, "pkg.tar.gz")
	content := []byte("sdist bytes")
	if err := os.WriteFile(dataPath, content, 0600); err != nil {
		t.Fatal(err)
	}
	var sig bytes.Buffer
	if err := openpgp.DetachSign(&sig, signer, bytes.NewReader(content), nil); err != nil {
		t.Fatalf("DetachSign: %v", err)
	}
	sigPath := dataPath + ".sig"
	if err := os.WriteFile(sigPath, sig.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	v := NewVerifier()
	if err := v.ImportKeyFromFile(keyPath); err != nil {
		t.Fatal(err)
	}
	if _, err := v.VerifyFile(dataPath, sigPath); err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
}

func TestVerifier_TamperedContentFails(t *testing.T) {
	dir := t.TempDir()
	signer, keyPath := newSigner(t, dir)

	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, signer, strings.NewReader("original"), nil); err != nil {
		t.Fatal(err)
	}

	v := NewVerifier()
	if err := v.ImportKeyFromFile(keyPath); err != nil {
		t.Fatal(err)
	}
	_, err := v.Verify(strings.NewReader("tampered"), bytes.NewReader(sig.Bytes()))
	if err == nil || !strings.Contains(err.Error(), "signature verification failed") {
		t.Errorf("expected verification failure, got %v", err)
	}
}

func TestVerifier_ImportKeyFromFile_NonexistentFile(t *testing.T) {
	err := NewVerifier().ImportKeyFromFile("/nonexistent/key.asc")
	if err == nil || !strings.Contains(err.Error(), "failed to open key file") {
		t.Errorf("expected 'failed to open key file' error, got: %v", err)
	}
}

func TestVerifier_ImportKeys_Garbage(t *testing.T) {
	if err := NewVerifier().ImportKeys([]byte("not a gpg key")); err == nil {
		t.Fatal("expected error for invalid key data")
	}
}

func TestVerifier_Verify_NoKeysImported(t *testing.T) {
	_, err := NewVerifier().Verify(strings.NewReader("x"), strings.NewReader("fake signature data"))
	if !errors.Is(err, ErrNoKeys) {
		t.Errorf("expected ErrNoKeys, got %v", err)
	}
}

func TestVerifier_Verify_OversizedSignature(t *testing.T) {
	dir := t.TempDir()
	_, keyPath := newSigner(t, dir)
	v := NewVerifier()
	if err := v.ImportKeyFromFile(keyPath); err != nil {
		t.Fatal(err)
	}
	big := bytes.Repeat([]byte("A"), maxSignatureBytes+5)
	_, err := v.Verify(strings.NewReader("x"), bytes.NewReader(big))
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("expected size error, got %v", err)
	}
}

func fpHex(e *openpgp.Entity) []byte {
	const hexdigits = "0123456789ABCDEF"
	out := make([]byte, 0, len(e.PrimaryKey.Fingerprint)*2)
	for _, b := range e.PrimaryKey.Fingerprint {
		out = append(out, hexdigits[b>>4], hexdigits[b&0x0f])
	}
	return out
}
