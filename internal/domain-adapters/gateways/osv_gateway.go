package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

const defaultOSVURL = "https://api.osv.dev/v1/query"

// osvGateway queries the OSV.dev API for known vulnerabilities
type osvGateway struct {
	apiURL string
	client *apiClient
}

// NewOSVGateway creates a new OSV intelligence source
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewOSVGateway(client *apiClient, apiURL string) *osvGateway {
	if apiURL == "" {
		apiURL = defaultOSVURL
	}
	return &osvGateway{apiURL: apiURL, client: client}
}

// Name identifies the source
func (g *osvGateway) Name() string {
	return entities.SourceOSV
}

// Query returns OSV records for pkg at version. OSV requires an ecosystem,
// so an undetected one yields no records rather than an error.
func (g *osvGateway) Query(ctx context.Context, pkg, version string, eco entities.Ecosystem) ([]entities.VulnerabilityRecord, error) {
	if eco == entities.EcosystemNone {
		return nil, nil
	}

	payload := OSVQueryRequest{
		Package: OSVPackage{Name: pkg, Ecosystem: string(eco)},
		Version: version,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var osvResp OSVQueryResponse
	if err := g.client.doJSON(req, &osvResp); err != nil {
		return nil, fmt.Errorf("OSV query failed: %w", err)
	}

	records := make([]entities.VulnerabilityRecord, 0, len(osvResp.Vulns))
	for _, vuln := range osvResp.Vulns {
		records = append(records, parseOSVVulnerability(vuln))
	}
	return records, nil
}

// parseOSVVulnerability converts an OSV entry, preferring its CVE alias as the id
func parseOSVVulnerability(vuln OSVVulnerability) entities.VulnerabilityRecord {
	id := vuln.ID
	for _, alias := range vuln.Aliases {
		if strings.HasPrefix(alias, "CVE-") {
			id = alias
			break
		}
	}

	desc := vuln.Summary
	if desc == "" {
		desc = vuln.Details
	}
	if desc == "" {
		desc = "No description."
	}

	record := entities.VulnerabilityRecord{
		ID:          id,
		Description: truncateRunes(desc, 300),
		Severity:    entities.SeverityUnknown,
		FixedIn:     extractOSVFixed(vuln),
		Source:      entities.SourceOSV,
		Published:   datePrefix(vuln.Published),
		Aliases:     vuln.Aliases,
	}

	// Score fields are usually CVSS vectors; only a bare number is a score
	for _, sev := range vuln.Severity {
		if sev.Score == "" {
			continue
		}
		if s, err := strconv.ParseFloat(sev.Score, 64); err == nil {
			record.Score = &s
			record.Severity = entities.SeverityFromScore(s)
		}
		break
	}
	if record.Severity == entities.SeverityUnknown && vuln.DatabaseSpecific.Severity != "" {
		record.Severity = entities.ParseSeverity(vuln.DatabaseSpecific.Severity)
	}

	for i, ref := range vuln.References {
		if i == 2 {
			break
		}
		record.References = append(record.References, ref.URL)
	}
	return record
}

// extractOSVFixed returns the first fixed event of the last version range carrying one.
// GIT ranges are skipped; their events are commit hashes.
func extractOSVFixed(vuln OSVVulnerability) string {
	fixed := ""
	for _, affected := range vuln.Affected {
		for _, rng := range affected.Ranges {
			if rng.Type != osvRangeEcosystem && rng.Type != osvRangeSemver {
				continue
			}
			for _, ev := range rng.Events {
				if ev.Fixed != "" {
					fixed = ev.Fixed
					break
				}
			}
		}
	}
	return fixed
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// datePrefix keeps the YYYY-MM-DD part of an RFC 3339 timestamp
func datePrefix(ts string) string {
	if len(ts) > 10 {
		return ts[:10]
	}
	return ts
}

// OSV API request/response types

// OSVQueryRequest represents a query to the OSV API for vulnerability information.
type OSVQueryRequest struct {
	Package OSVPackage `json:"package"`
	Version string     `json:"version"`
}

// OSVPackage identifies a software package in a specific ecosystem.
type OSVPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

// OSVQueryResponse contains the vulnerability results from the OSV API.
type OSVQueryResponse struct {
	Vulns []OSVVulnerability `json:"vulns"`
}

// OSVVulnerability represents a single vulnerability from the OSV database.
type OSVVulnerability struct {
	ID               string              `json:"id"`
	Summary          string              `json:"summary"`
	Details          string              `json:"details"`
	Aliases          []string            `json:"aliases,omitempty"`
	Published        string              `json:"published,omitempty"`
	Severity         []OSVSeverity       `json:"severity,omitempty"`
	Affected         []OSVAffected       `json:"affected,omitempty"`
	References       []OSVReference      `json:"references,omitempty"`
	DatabaseSpecific OSVDatabaseSpecific `json:"database_specific,omitempty"`
}

// OSVSeverity contains severity scoring information for a vulnerability.
type OSVSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// OSVAffected lists the affected version ranges of one package.
type OSVAffected struct {
	Package OSVPackage `json:"package"`
	Ranges  []OSVRange `json:"ranges,omitempty"`
}

// OSV range types carrying package versions
const (
	osvRangeEcosystem = "ECOSYSTEM"
	osvRangeSemver    = "SEMVER"
)

// OSVRange is an ordered list of introduced/fixed events.
type OSVRange struct {
	Type   string     `json:"type"`
	Events []OSVEvent `json:"events"`
}

// OSVEvent marks a version where the vulnerability was introduced or fixed.
type OSVEvent struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
}

// OSVReference is an advisory or patch link.
type OSVReference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// OSVDatabaseSpecific carries the GitHub advisory severity label.
type OSVDatabaseSpecific struct {
	Severity string `json:"severity,omitempty"`
}
