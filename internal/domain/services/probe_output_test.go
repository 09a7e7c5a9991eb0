package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

func bufferOverflowSpec() entities.ProbeSpec {
	return entities.ProbeSpec{
		BugClass: entities.BugClassBufferOverflow,
		Outcomes: []entities.OutcomeRule{
			{Outcome: entities.OutcomeCrash, Passed: entities.BoolPtr(false), Message: "Crashed on oversized input: {output}"},
			{Outcome: entities.OutcomeHandled, Passed: entities.BoolPtr(true), Message: "Handled oversized input gracefully."},
		},
	}
}

func memoryLeakSpec() entities.ProbeSpec {
	return entities.ProbeSpec{
		BugClass: entities.BugClassMemoryLeak,
		Outcomes: []entities.OutcomeRule{
			{Outcome: entities.OutcomeLeak, Passed: entities.BoolPtr(false), Message: "Memory grew by {mb}MB; possible leak."},
			{Outcome: entities.OutcomeStable, Passed: entities.BoolPtr(true), Message: "Memory remained stable across 500 iterations."},
		},
	}
}

func TestInterpretProbeOutput(t *testing.T) {
	tests := []struct {
		name        string
		spec        entities.ProbeSpec
		stdout      string
		wantRan     bool
		wantOutcome entities.ProbeOutcome
		wantPassed  *bool
		wantMessage string
		wantReason  string
	}{
		{
			name:        "crash",
			spec:        bufferOverflowSpec(),
			stdout:      "CRASH:parse:SystemError\n",
			wantRan:     true,
			wantOutcome: entities.OutcomeCrash,
			wantPassed:  entities.BoolPtr(false),
			wantMessage: "Crashed on oversized input: CRASH:parse:SystemError",
		},
		{
			name:        "handled after noisy output",
			spec:        bufferOverflowSpec(),
			stdout:      "DeprecationWarning: something\n\nHANDLED\n\n",
			wantRan:     true,
			wantOutcome: entities.OutcomeHandled,
			wantPassed:  entities.BoolPtr(true),
			wantMessage: "Handled oversized input gracefully.",
		},
		{
			name:        "leak reports megabytes",
			spec:        memoryLeakSpec(),
			stdout:      "LEAK:20971520",
			wantRan:     true,
			wantOutcome: entities.OutcomeLeak,
			wantPassed:  entities.BoolPtr(false),
			wantMessage: "Memory grew by 20MB; possible leak.",
		},
		{
			name:       "import error means not run",
			spec:       bufferOverflowSpec(),
			stdout:     "IMPORT_ERROR",
			wantRan:    false,
			wantReason: "Package could not be imported (may be a CLI tool, not a library).",
		},
		{
			name:        "token not declared for the class",
			spec:        bufferOverflowSpec(),
			stdout:      "STABLE:100",
			wantRan:     true,
			wantOutcome: entities.OutcomeUnknown,
			wantMessage: "Probe output: STABLE:100",
		},
		{
			name:        "garbage output",
			spec:        bufferOverflowSpec(),
			stdout:      "Segmentation fault",
			wantRan:     true,
			wantOutcome: entities.OutcomeUnknown,
			wantMessage: "Probe output: Segmentation fault",
		},
		{
			name:        "empty output",
			spec:        bufferOverflowSpec(),
			stdout:      "",
			wantRan:     true,
			wantOutcome: entities.OutcomeUnknown,
			wantMessage: "Probe output: ",
		},
		{
			name:        "no entry points resolved",
			spec:        bufferOverflowSpec(),
			stdout:      "NO_ENTRYPOINTS",
			wantRan:     true,
			wantOutcome: entities.OutcomeUnknown,
			wantMessage: "None of the declared entry points exist in this release; probe inconclusive.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpretProbeOutput(tt.spec, tt.stdout)
			assert.Equal(t, tt.wantRan, got.Ran)
			assert.Equal(t, tt.wantPassed, got.Passed)
			if tt.wantRan {
				assert.Equal(t, tt.wantOutcome, got.Outcome)
				assert.Equal(t, tt.wantMessage, got.Message)
			} else {
				assert.Equal(t, tt.wantReason, got.Reason)
			}
		})
	}
}

func TestInterpretProbeOutput_DoesNotShareRulePointers(t *testing.T) {
	spec := bufferOverflowSpec()
	got := InterpretProbeOutput(spec, "HANDLED")
	require.NotNil(t, got.Passed)

	*got.Passed = false

	rule, ok := spec.Rule(entities.OutcomeHandled)
	require.True(t, ok)
	assert.True(t, *rule.Passed)
}

func TestCombineProbeRuns(t *testing.T) {
	spec := bufferOverflowSpec()
	crash := InterpretProbeOutput(spec, "CRASH:parse:MemoryError")
	handled := InterpretProbeOutput(spec, "HANDLED")
	unknown := InterpretProbeOutput(spec, "???")
	notRun := entities.NotRun("Could not install pkg==1.0 for probing.")

	t.Run("old fails new passes confirms fix", func(t *testing.T) {
		got := CombineProbeRuns("1.0", "1.1", crash, handled)
		assert.True(t, got.Ran)
		require.NotNil(t, got.Passed)
		assert.True(t, *got.Passed)
		assert.Contains(t, got.Message, "fix confirmed")
	})

	t.Run("new fails regardless of old", func(t *testing.T) {
		for _, old := range []entities.ProbeResult{crash, handled, unknown, notRun} {
			got := CombineProbeRuns("1.0", "1.1", old, crash)
			require.NotNil(t, got.Passed)
			assert.False(t, *got.Passed)
		}
	})

	t.Run("both fail reads still vulnerable", func(t *testing.T) {
		got := CombineProbeRuns("1.0", "1.1", crash, crash)
		assert.Contains(t, got.Message, "still vulnerable")
	})

	t.Run("new only fails reads fix not effective", func(t *testing.T) {
		got := CombineProbeRuns("1.0", "1.1", handled, crash)
		assert.Contains(t, got.Message, "fix not effective")
	})

	t.Run("both pass is inconclusive", func(t *testing.T) {
		got := CombineProbeRuns("1.0", "1.1", handled, handled)
		assert.True(t, got.Ran)
		assert.Nil(t, got.Passed)
		assert.Equal(t, "Probe results inconclusive (old: HANDLED, new: HANDLED).", got.Message)
	})

	t.Run("only one side ran is inconclusive", func(t *testing.T) {
		got := CombineProbeRuns("1.0", "1.1", notRun, handled)
		assert.True(t, got.Ran)
		assert.Nil(t, got.Passed)
		assert.Equal(t, "Probe results inconclusive (old: not run, new: HANDLED).", got.Message)
	})

	t.Run("neither ran keeps the reason", func(t *testing.T) {
		got := CombineProbeRuns("1.0", "1.1", notRun, entities.NotRun("node/npm not found in PATH"))
		assert.False(t, got.Ran)
		assert.Equal(t, "node/npm not found in PATH", got.Reason)
	})
}
