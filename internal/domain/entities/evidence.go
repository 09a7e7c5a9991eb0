package entities

// SignalKind identifies which evidence collector produced a signal
type SignalKind string

// Signal kinds, in the order verdicts render them
const (
	SignalVersionRange    SignalKind = "version_range"
	SignalFileDiff        SignalKind = "file_diff"
	SignalBehavioralProbe SignalKind = "behavioral_probe"
)

// Polarity is the direction a signal points
type Polarity string

// Polarities
const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
	PolarityUnknown  Polarity = "unknown"
)

// EvidenceSignal is one weighted piece of evidence about a promise.
// Weight is zero whenever polarity is unknown.
type EvidenceSignal struct {
	Kind     SignalKind `json:"kind"`
	Polarity Polarity   `json:"polarity"`
	Weight   int        `json:"weight"`
	Detail   string     `json:"detail"`
}

// Contributes reports whether the signal carries weight in fusion
func (s EvidenceSignal) Contributes() bool {
	return s.Polarity != PolarityUnknown && s.Weight > 0
}

// Range check methods
const (
	RangeMethodFixedIn       = "fixed_in"
	RangeMethodAffectedBelow = "affected_below"
	RangeMethodNoRangeData   = "no_range_data"
	RangeMethodNone          = "none"
)

// RangeCheck is the output of the version range evaluator.
// Fixed is nil when no comparable range data exists.
type RangeCheck struct {
	Fixed  *bool  `json:"fixed"`
	Method string `json:"method"`
	Detail string `json:"detail"`
}

// DiffCheck is the output of the file-change relevance matcher.
// FilesChanged is nil when files changed but none matched the promise.
type DiffCheck struct {
	Checked      bool     `json:"checked"`
	FilesChanged *bool    `json:"files_changed"`
	Relevant     []string `json:"relevant,omitempty"`
	Reason       string   `json:"reason"`
}

// BoolPtr returns a pointer to b, for tri-state fields
func BoolPtr(b bool) *bool {
	return &b
}
