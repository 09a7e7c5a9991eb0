package entities

import (
	"fmt"
	"sort"
	"time"
)

// ProbeState tracks a probe run through its sandbox lifecycle
type ProbeState string

// Probe states. NOT_RUN → INSTALLING → RUNNING → {COMPLETED, TIMEOUT, INSTALL_FAILED}
const (
	ProbeStateNotRun        ProbeState = "NOT_RUN"
	ProbeStateInstalling    ProbeState = "INSTALLING"
	ProbeStateRunning       ProbeState = "RUNNING"
	ProbeStateCompleted     ProbeState = "COMPLETED"
	ProbeStateTimeout       ProbeState = "TIMEOUT"
	ProbeStateInstallFailed ProbeState = "INSTALL_FAILED"
)

// ProbeOutcome is the parsed result token a probe script prints
type ProbeOutcome string

// Probe outcomes
const (
	OutcomeHandled       ProbeOutcome = "HANDLED"
	OutcomeCrash         ProbeOutcome = "CRASH"
	OutcomeLeak          ProbeOutcome = "LEAK"
	OutcomeStable        ProbeOutcome = "STABLE"
	OutcomeUnhandled     ProbeOutcome = "UNHANDLED"
	OutcomeValidated     ProbeOutcome = "VALIDATED"
	OutcomeOverflow      ProbeOutcome = "OVERFLOW"
	OutcomeIssue         ProbeOutcome = "ISSUE"
	OutcomeTimeout       ProbeOutcome = "TIMEOUT"
	OutcomeImportError   ProbeOutcome = "IMPORT_ERROR"
	OutcomeNoEntrypoints ProbeOutcome = "NO_ENTRYPOINTS"
	OutcomeUnknown       ProbeOutcome = "UNKNOWN"
)

// ProbeRequest asks for one probe run against one installed release
type ProbeRequest struct {
	Package   string
	Version   string
	BugClass  BugClass
	Ecosystem Ecosystem
}

// ProbeResult is the outcome of a probe run, or of combining old/new runs.
// Passed is nil when the result is inconclusive. Reason explains Ran=false.
type ProbeResult struct {
	Ran      bool          `json:"ran"`
	State    ProbeState    `json:"state,omitempty"`
	Outcome  ProbeOutcome  `json:"outcome,omitempty"`
	Passed   *bool         `json:"passed"`
	Message  string        `json:"message,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Version  string        `json:"version,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// NotRun builds a result for a probe that never executed
func NotRun(reason string) ProbeResult {
	return ProbeResult{Ran: false, State: ProbeStateNotRun, Reason: reason}
}

// OutcomeRule maps a declared outcome token to its meaning.
// Message may contain {output} and {mb} placeholders.
type OutcomeRule struct {
	Outcome ProbeOutcome
	Passed  *bool
	Message string
}

// ProbeSpec describes how to exercise one bug class
type ProbeSpec struct {
	BugClass     BugClass
	Description  string
	EntryPoints  []string
	Outcomes     []OutcomeRule
	PythonScript string
	NodeScript   string
}

// Rule returns the declared rule for an outcome token
func (s ProbeSpec) Rule(outcome ProbeOutcome) (OutcomeRule, bool) {
	for _, r := range s.Outcomes {
		if r.Outcome == outcome {
			return r, true
		}
	}
	return OutcomeRule{}, false
}

// Script returns the probe source for an ecosystem, empty when none exists
func (s ProbeSpec) Script(eco Ecosystem) string {
	switch eco {
	case EcosystemPyPI:
		return s.PythonScript
	case EcosystemNPM:
		return s.NodeScript
	default:
		return ""
	}
}

// ProbeCatalog is an immutable registry of probe specs keyed by bug class.
// It is built once at startup and injected where needed.
type ProbeCatalog struct {
	specs map[BugClass]ProbeSpec
	order []BugClass
}

// NewProbeCatalog builds a catalog, rejecting duplicate or unnamed bug classes
func NewProbeCatalog(specs []ProbeSpec) (*ProbeCatalog, error) {
	c := &ProbeCatalog{specs: make(map[BugClass]ProbeSpec, len(specs))}
	for _, s := range specs {
		if s.BugClass == "" {
			return nil, fmt.Errorf("probe spec without bug class")
		}
		if _, dup := c.specs[s.BugClass]; dup {
			return nil, fmt.Errorf("duplicate probe spec for %s", s.BugClass)
		}
		c.specs[s.BugClass] = cloneSpec(s)
		c.order = append(c.order, s.BugClass)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	return c, nil
}

// Lookup returns a copy of the spec for a bug class
func (c *ProbeCatalog) Lookup(class BugClass) (ProbeSpec, bool) {
	if c == nil {
		return ProbeSpec{}, false
	}
	s, ok := c.specs[class]
	if !ok {
		return ProbeSpec{}, false
	}
	return cloneSpec(s), true
}

// BugClasses returns the probed bug classes in sorted order
func (c *ProbeCatalog) BugClasses() []BugClass {
	if c == nil {
		return nil
	}
	out := make([]BugClass, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of specs in the catalog
func (c *ProbeCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

func cloneSpec(s ProbeSpec) ProbeSpec {
	s.EntryPoints = append([]string(nil), s.EntryPoints...)
	s.Outcomes = append([]OutcomeRule(nil), s.Outcomes...)
	return s
}
