package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// InterpretProbeOutput parses a probe's stdout against the spec's declared outcomes.
// Only the last non-empty line is considered; tokens the spec does not declare are UNKNOWN.
func InterpretProbeOutput(spec entities.ProbeSpec, stdout string) entities.ProbeResult {
	line := lastLine(stdout)
	token, detail, _ := strings.Cut(line, ":")
	outcome := entities.ProbeOutcome(token)

	switch outcome {
	case entities.OutcomeImportError:
		return entities.ProbeResult{
			Ran:     false,
			State:   entities.ProbeStateCompleted,
			Outcome: outcome,
			Reason:  "Package could not be imported (may be a CLI tool, not a library).",
		}
	case entities.OutcomeNoEntrypoints:
		return entities.ProbeResult{
			Ran:     true,
			State:   entities.ProbeStateCompleted,
			Outcome: entities.OutcomeUnknown,
			Message: "None of the declared entry points exist in this release; probe inconclusive.",
		}
	}

	rule, ok := spec.Rule(outcome)
	if !ok || line == "" {
		return entities.ProbeResult{
			Ran:     true,
			State:   entities.ProbeStateCompleted,
			Outcome: entities.OutcomeUnknown,
			Message: "Probe output: " + line,
		}
	}

	var passed *bool
	if rule.Passed != nil {
		passed = entities.BoolPtr(*rule.Passed)
	}
	return entities.ProbeResult{
		Ran:     true,
		State:   entities.ProbeStateCompleted,
		Outcome: rule.Outcome,
		Passed:  passed,
		Message: renderOutcomeMessage(rule.Message, line, detail),
	}
}

// ProbeTimedOut is the result for a probe killed at its execution deadline
func ProbeTimedOut(limit time.Duration) entities.ProbeResult {
	return entities.ProbeResult{
		Ran:     true,
		State:   entities.ProbeStateTimeout,
		Outcome: entities.OutcomeTimeout,
		Passed:  entities.BoolPtr(false),
		Message: fmt.Sprintf("Probe timed out (>%s); possible hang or DoS vulnerability.", limit),
	}
}

func renderOutcomeMessage(tmpl, line, detail string) string {
	if tmpl == "" {
		return "Probe output: " + line
	}
	mb := "?"
	if n, err := strconv.ParseInt(strings.TrimSpace(detail), 10, 64); err == nil {
		mb = strconv.FormatInt(n/1024/1024, 10)
	}
	return strings.NewReplacer("{output}", line, "{mb}", mb).Replace(tmpl)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
