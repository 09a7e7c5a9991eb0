package services

import (
	"fmt"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// CombineProbeRuns folds the old-release and new-release runs of one probe into evidence.
//
// The new release failing is negative no matter how the old one fared. A fix is confirmed
// only when the old release failed and the new one passed. Anything else that ran is
// inconclusive.
func CombineProbeRuns(oldVersion, newVersion string, oldRun, newRun entities.ProbeResult) entities.ProbeResult {
	switch {
	case newRun.Ran && isFalse(newRun.Passed):
		msg := fmt.Sprintf("New v%s still fails probe; fix not effective.", newVersion)
		if oldRun.Ran && isFalse(oldRun.Passed) {
			msg = fmt.Sprintf("Old v%s and new v%s both fail probe; still vulnerable.", oldVersion, newVersion)
		}
		return entities.ProbeResult{
			Ran:     true,
			State:   newRun.State,
			Outcome: newRun.Outcome,
			Passed:  entities.BoolPtr(false),
			Message: msg,
			Version: newVersion,
		}

	case oldRun.Ran && newRun.Ran && isFalse(oldRun.Passed) && isTrue(newRun.Passed):
		return entities.ProbeResult{
			Ran:     true,
			State:   newRun.State,
			Outcome: newRun.Outcome,
			Passed:  entities.BoolPtr(true),
			Message: fmt.Sprintf("Old v%s failed probe, new v%s passed; fix confirmed.", oldVersion, newVersion),
			Version: newVersion,
		}

	case oldRun.Ran || newRun.Ran:
		return entities.ProbeResult{
			Ran:     true,
			State:   newRun.State,
			Outcome: newRun.Outcome,
			Message: fmt.Sprintf("Probe results inconclusive (old: %s, new: %s).", describeRun(oldRun), describeRun(newRun)),
			Version: newVersion,
		}
	}

	reason := newRun.Reason
	if reason == "" {
		reason = oldRun.Reason
	}
	if reason == "" {
		reason = "Not applicable."
	}
	return entities.ProbeResult{Ran: false, State: newRun.State, Reason: reason, Version: newVersion}
}

func describeRun(r entities.ProbeResult) string {
	if !r.Ran {
		return "not run"
	}
	if r.Outcome == "" {
		return string(entities.OutcomeUnknown)
	}
	return string(r.Outcome)
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }
