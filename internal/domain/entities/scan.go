package entities

import "time"

// RiskLabel buckets the aggregate risk score
type RiskLabel string

// Risk labels in increasing order of exposure
const (
	RiskNone     RiskLabel = "NONE"
	RiskLow      RiskLabel = "LOW"
	RiskMedium   RiskLabel = "MEDIUM"
	RiskHigh     RiskLabel = "HIGH"
	RiskCritical RiskLabel = "CRITICAL"
)

var riskRank = map[RiskLabel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// AtLeast reports whether l is as severe as other
func (l RiskLabel) AtLeast(other RiskLabel) bool {
	return riskRank[l] >= riskRank[other]
}

// ParseRiskLabel validates a label typed by a user
func ParseRiskLabel(s string) (RiskLabel, bool) {
	l := RiskLabel(s)
	_, ok := riskRank[l]
	return l, ok
}

// RiskScore is the aggregate exposure of an upgrade
type RiskScore struct {
	Score float64   `json:"score"`
	Label RiskLabel `json:"label"`
}

// ScanRequest identifies an upgrade to verify
type ScanRequest struct {
	App        string
	OldVersion string
	NewVersion string
	Ecosystem  Ecosystem // empty means detect
	Promises   []Promise // replaces release-notes collection when set
	SkipProbe  bool
	SkipDiff   bool
}

// ScanRecord is the write-once outcome of a scan
type ScanRecord struct {
	ScanID      string           `json:"scan_id"`
	App         string           `json:"app"`
	OldVersion  string           `json:"old_version"`
	NewVersion  string           `json:"new_version"`
	Ecosystem   Ecosystem        `json:"ecosystem,omitempty"`
	Started     time.Time        `json:"started"`
	Completed   time.Time        `json:"completed"`
	Total       int              `json:"total"`
	Fixed       int              `json:"fixed"`
	NotFixed    int              `json:"not_fixed"`
	Unconfirmed int              `json:"unconfirmed"`
	RiskScore   float64          `json:"risk_score"`
	RiskLabel   RiskLabel        `json:"risk_label"`
	Verdicts    []PromiseVerdict `json:"verdicts"`
	Notes       []string         `json:"notes,omitempty"`
}

// ScanSummary is the row shown in history listings
type ScanSummary struct {
	ScanID      string
	App         string
	OldVersion  string
	NewVersion  string
	Completed   time.Time
	Total       int
	Fixed       int
	NotFixed    int
	Unconfirmed int
	RiskScore   float64
	RiskLabel   RiskLabel
}

// Summary projects a record onto its history row
func (r *ScanRecord) Summary() ScanSummary {
	return ScanSummary{
		ScanID:      r.ScanID,
		App:         r.App,
		OldVersion:  r.OldVersion,
		NewVersion:  r.NewVersion,
		Completed:   r.Completed,
		Total:       r.Total,
		Fixed:       r.Fixed,
		NotFixed:    r.NotFixed,
		Unconfirmed: r.Unconfirmed,
		RiskScore:   r.RiskScore,
		RiskLabel:   r.RiskLabel,
	}
}
