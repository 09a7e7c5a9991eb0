package entities

import "strings"

// Ecosystem is a package registry the engine can diff and probe
type Ecosystem string

// Supported ecosystems. The empty value means detection failed.
const (
	EcosystemNone Ecosystem = ""
	EcosystemPyPI Ecosystem = "PyPI"
	EcosystemNPM  Ecosystem = "npm"
)

// Supported reports whether diffing and probing work for the ecosystem
func (e Ecosystem) Supported() bool {
	return e == EcosystemPyPI || e == EcosystemNPM
}

// ParseEcosystem accepts the spellings users type on the command line
func ParseEcosystem(s string) (Ecosystem, bool) {
	switch s {
	case "pypi", "PyPI", "python", "pip":
		return EcosystemPyPI, true
	case "npm", "node", "nodejs":
		return EcosystemNPM, true
	case "":
		return EcosystemNone, true
	default:
		return EcosystemNone, false
	}
}

// LatestVersion stands for the newest published release wherever a version is expected
const LatestVersion = "latest"

// IsLatestVersion reports whether v asks for the newest release
func IsLatestVersion(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), LatestVersion)
}

// ReleaseArtifact is a downloadable distribution of one package version
type ReleaseArtifact struct {
	Package      string
	Version      string
	Ecosystem    Ecosystem
	Filename     string
	URL          string
	SHA256       string
	Integrity    string // npm SRI string, e.g. sha512-<base64>
	SignatureURL string // detached OpenPGP signature, when the registry has one
}

// ReleaseNotes is the body of a published release
type ReleaseNotes struct {
	Repository string
	Tag        string
	Body       string
}
