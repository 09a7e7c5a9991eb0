package entities

import "strings"

// Severity is the normalized severity bucket of a vulnerability
type Severity string

// Severity buckets
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Vulnerability record sources
const (
	SourceOSV              = "osv"
	SourceNVD              = "nvd"
	SourceReleaseNotesOnly = "release_notes_only"
)

// ParseSeverity normalizes a severity label from any intelligence source.
// GitHub advisories say MODERATE where CVSS says MEDIUM.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM", "MODERATE":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// SeverityFromScore maps a CVSS base score to a severity bucket
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// VulnerabilityRecord is a known vulnerability as reported by an intelligence source.
// Records are treated as immutable once fetched; merging produces new values.
type VulnerabilityRecord struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
	Score         *float64 `json:"score,omitempty"`
	FixedIn       string   `json:"fixed_in,omitempty"`
	AffectedBelow string   `json:"affected_below,omitempty"`
	Source        string   `json:"source"`
	Published     string   `json:"published,omitempty"`
	References    []string `json:"references,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
}

// HasRangeData reports whether the record carries any version bound
func (r VulnerabilityRecord) HasRangeData() bool {
	return r.FixedIn != "" || r.AffectedBelow != ""
}
