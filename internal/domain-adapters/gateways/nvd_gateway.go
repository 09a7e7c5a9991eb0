package gateways

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

const (
	defaultNVDURL     = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	nvdResultsPerPage = 50
)

// nvdGateway performs keyword searches against the NVD CVE API 2.0
type nvdGateway struct {
	apiURL string
	client *apiClient
}

// NewNVDGateway creates a new NVD intelligence source
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewNVDGateway(client *apiClient, apiURL string) *nvdGateway {
	if apiURL == "" {
		apiURL = defaultNVDURL
	}
	return &nvdGateway{apiURL: apiURL, client: client}
}

// Name identifies the source
func (g *nvdGateway) Name() string {
	return entities.SourceNVD
}

// Query searches NVD for "<pkg> <version>". NVD has no ecosystem concept.
func (g *nvdGateway) Query(ctx context.Context, pkg, version string, _ entities.Ecosystem) ([]entities.VulnerabilityRecord, error) {
	params := url.Values{}
	params.Set("keywordSearch", pkg+" "+version)
	params.Set("resultsPerPage", strconv.Itoa(nvdResultsPerPage))

	var resp NVDResponse
	if err := g.client.getJSON(ctx, g.apiURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("NVD query failed: %w", err)
	}

	records := make([]entities.VulnerabilityRecord, 0, len(resp.Vulnerabilities))
	for _, item := range resp.Vulnerabilities {
		records = append(records, parseNVDItem(item.CVE))
	}
	return records, nil
}

func parseNVDItem(cve NVDCve) entities.VulnerabilityRecord {
	id := cve.ID
	if id == "" {
		id = "UNKNOWN"
	}

	desc := "No description."
	for _, d := range cve.Descriptions {
		if d.Lang == "en" {
			desc = d.Value
			break
		}
	}

	record := entities.VulnerabilityRecord{
		ID:          id,
		Description: truncateRunes(desc, 300),
		Severity:    entities.SeverityUnknown,
		Source:      entities.SourceNVD,
		Published:   datePrefix(cve.Published),
	}
	record.Severity, record.Score = nvdSeverity(cve.Metrics)
	record.FixedIn, record.AffectedBelow = nvdVersionRange(cve.Configurations)

	for i, ref := range cve.References {
		if i == 2 {
			break
		}
		record.References = append(record.References, ref.URL)
	}
	return record
}

// nvdSeverity takes the first metric of the newest CVSS version present
func nvdSeverity(m NVDMetrics) (entities.Severity, *float64) {
	pick := func(severity string, score float64) (entities.Severity, *float64) {
		var sp *float64
		if score > 0 {
			s := score
			sp = &s
		}
		sev := entities.ParseSeverity(severity)
		if sev == entities.SeverityUnknown && sp != nil {
			sev = entities.SeverityFromScore(*sp)
		}
		return sev, sp
	}

	switch {
	case len(m.CvssMetricV31) > 0:
		d := m.CvssMetricV31[0].CvssData
		return pick(d.BaseSeverity, d.BaseScore)
	case len(m.CvssMetricV30) > 0:
		d := m.CvssMetricV30[0].CvssData
		return pick(d.BaseSeverity, d.BaseScore)
	case len(m.CvssMetricV2) > 0:
		v2 := m.CvssMetricV2[0]
		return pick(strings.TrimSpace(v2.BaseSeverity), v2.CvssData.BaseScore)
	default:
		return entities.SeverityUnknown, nil
	}
}

// nvdVersionRange scans vulnerable CPE matches; later matches overwrite earlier ones
func nvdVersionRange(configs []NVDConfig) (fixedIn, affectedBelow string) {
	for _, cfg := range configs {
		for _, node := range cfg.Nodes {
			for _, match := range node.CpeMatch {
				if !match.Vulnerable {
					continue
				}
				switch {
				case match.VersionEndExcluding != "":
					fixedIn = match.VersionEndExcluding
				case match.VersionEndIncluding != "":
					affectedBelow = match.VersionEndIncluding
				}
			}
		}
	}
	return fixedIn, affectedBelow
}

// NVD API 2.0 response types (subset)

// NVDResponse is the top-level CVE API response.
type NVDResponse struct {
	ResultsPerPage  int          `json:"resultsPerPage"`
	StartIndex      int          `json:"startIndex"`
	TotalResults    int          `json:"totalResults"`
	Vulnerabilities []NVDCveItem `json:"vulnerabilities"`
}

// NVDCveItem is an item in the "vulnerabilities" array.
type NVDCveItem struct {
	CVE NVDCve `json:"cve"`
}

// NVDCve is the CVE object.
type NVDCve struct {
	ID             string          `json:"id"`
	Published      string          `json:"published"`
	Descriptions   []NVDLangString `json:"descriptions"`
	References     []NVDReference  `json:"references"`
	Metrics        NVDMetrics      `json:"metrics,omitempty"`
	Configurations []NVDConfig     `json:"configurations,omitempty"`
}

// NVDLangString is a localized text.
type NVDLangString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// NVDReference is a reference link.
type NVDReference struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// NVDMetrics holds CVSS metrics by version.
type NVDMetrics struct {
	CvssMetricV31 []NVDCvssV3 `json:"cvssMetricV31,omitempty"`
	CvssMetricV30 []NVDCvssV3 `json:"cvssMetricV30,omitempty"`
	CvssMetricV2  []NVDCvssV2 `json:"cvssMetricV2,omitempty"`
}

// NVDCvssV3 is a CVSS v3.x metric.
type NVDCvssV3 struct {
	Source   string        `json:"source"`
	CvssData NVDCvssDataV3 `json:"cvssData"`
}

// NVDCvssDataV3 carries the v3 base score and severity.
type NVDCvssDataV3 struct {
	Version      string  `json:"version"`
	VectorString string  `json:"vectorString"`
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
}

// NVDCvssV2 is a CVSS v2 metric; severity lives outside cvssData.
type NVDCvssV2 struct {
	Source       string        `json:"source"`
	BaseSeverity string        `json:"baseSeverity,omitempty"`
	CvssData     NVDCvssDataV2 `json:"cvssData"`
}

// NVDCvssDataV2 carries the v2 base score.
type NVDCvssDataV2 struct {
	Version      string  `json:"version"`
	VectorString string  `json:"vectorString"`
	BaseScore    float64 `json:"baseScore"`
}

// NVDConfig is a "configurations" entry.
type NVDConfig struct {
	Operator string    `json:"operator,omitempty"`
	Nodes    []NVDNode `json:"nodes"`
}

// NVDNode groups CPE matches.
type NVDNode struct {
	Operator string        `json:"operator"`
	Negate   bool          `json:"negate,omitempty"`
	CpeMatch []NVDCpeMatch `json:"cpeMatch,omitempty"`
}

// NVDCpeMatch is a CPE applicability statement with optional version bounds.
type NVDCpeMatch struct {
	Vulnerable            bool   `json:"vulnerable"`
	Criteria              string `json:"criteria"`
	VersionStartIncluding string `json:"versionStartIncluding,omitempty"`
	VersionEndExcluding   string `json:"versionEndExcluding,omitempty"`
	VersionEndIncluding   string `json:"versionEndIncluding,omitempty"`
}
