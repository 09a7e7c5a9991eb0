package entities

// VerdictStatus is the fused conclusion about a promise
type VerdictStatus string

// Verdict statuses
const (
	StatusFixed       VerdictStatus = "FIXED"
	StatusNotFixed    VerdictStatus = "NOT_FIXED"
	StatusUnconfirmed VerdictStatus = "UNCONFIRMED"
)

// Verdict is the fusion result for one promise. It is never mutated after creation.
type Verdict struct {
	Status     VerdictStatus `json:"status"`
	Confidence int           `json:"confidence"`
	Signals    []string      `json:"signals"`
}

// PromiseVerdict joins a verdict with the promise and record it judged
type PromiseVerdict struct {
	Promise  Promise              `json:"promise"`
	Record   *VulnerabilityRecord `json:"record,omitempty"`
	Severity Severity             `json:"severity"`
	Verdict  Verdict              `json:"verdict"`
	Evidence []EvidenceSignal     `json:"evidence,omitempty"`
}
