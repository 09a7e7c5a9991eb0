package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

func score(f float64) *float64 { return &f }

func TestMergeIntelligence(t *testing.T) {
	osv := []entities.VulnerabilityRecord{
		{ID: "CVE-2024-0001", Severity: entities.SeverityUnknown, Source: entities.SourceOSV},
		{ID: "CVE-2024-0002", FixedIn: "2.0.0", Severity: entities.SeverityHigh, Score: score(7.5), Source: entities.SourceOSV},
	}
	nvd := []entities.VulnerabilityRecord{
		{ID: "CVE-2024-0001", FixedIn: "1.4.0", AffectedBelow: "1.4.0", Severity: entities.SeverityCritical, Score: score(9.8), Source: entities.SourceNVD},
		{ID: "CVE-2024-0002", FixedIn: "1.9.0", Severity: entities.SeverityLow, Score: score(2.0), Source: entities.SourceNVD},
		{ID: "CVE-2024-0003", Severity: entities.SeverityMedium, Source: entities.SourceNVD},
	}

	merged := MergeIntelligence(osv, nvd)
	require.Len(t, merged, 3)

	first := merged[0]
	assert.Equal(t, entities.SourceOSV, first.Source, "first source keeps the record")
	assert.Equal(t, "1.4.0", first.FixedIn, "missing fixed_in filled")
	assert.Equal(t, "1.4.0", first.AffectedBelow)
	require.NotNil(t, first.Score)
	assert.InDelta(t, 9.8, *first.Score, 0.001)
	assert.Equal(t, entities.SeverityCritical, first.Severity, "severity follows the filled score")

	second := merged[1]
	assert.Equal(t, "2.0.0", second.FixedIn, "existing bounds are not overwritten")
	assert.Equal(t, entities.SeverityHigh, second.Severity)

	assert.Equal(t, "CVE-2024-0003", merged[2].ID)
}

func TestMergeIntelligence_DoesNotMutateInput(t *testing.T) {
	osv := []entities.VulnerabilityRecord{{ID: "CVE-1", Source: entities.SourceOSV}}
	nvd := []entities.VulnerabilityRecord{{ID: "CVE-1", FixedIn: "1.0", Source: entities.SourceNVD}}

	_ = MergeIntelligence(osv, nvd)

	assert.Empty(t, osv[0].FixedIn)
}

func TestAddPromiseStubs(t *testing.T) {
	records := []entities.VulnerabilityRecord{{ID: "CVE-2024-0001", Source: entities.SourceOSV}}
	promises := []entities.Promise{
		{Type: entities.PromiseCVE, ID: "CVE-2024-0001", Description: "known"},
		{Type: entities.PromiseCVE, ID: "CVE-2024-0009", Description: "only in notes"},
		{Type: entities.PromiseCVE, ID: "CVE-2024-0009", Description: "mentioned twice"},
		{Type: entities.PromiseBugFix, ID: "BUG-001", Description: "memory leak"},
	}

	out := AddPromiseStubs(records, promises)

	require.Len(t, out, 2)
	stub := out[1]
	assert.Equal(t, "CVE-2024-0009", stub.ID)
	assert.Equal(t, entities.SeverityUnknown, stub.Severity)
	assert.Equal(t, entities.SourceReleaseNotesOnly, stub.Source)
	assert.Nil(t, stub.Score)
	assert.Empty(t, stub.FixedIn)
}

func TestBuildVerificationItems(t *testing.T) {
	records := []entities.VulnerabilityRecord{
		{ID: "CVE-2024-0001", Description: "Denial of service via crafted input", Severity: entities.SeverityHigh, Source: entities.SourceOSV},
		{ID: "CVE-2024-0002", Description: "Something unusual", Source: entities.SourceNVD},
	}
	promises := []entities.Promise{
		{Type: entities.PromiseCVE, ID: "CVE-2024-0002", BugClass: entities.BugClassIntegerOverflow},
		{Type: entities.PromiseBugFix, ID: "BUG-002", Description: "Fixed memory leak", BugClass: entities.BugClassMemoryLeak},
	}

	items := BuildVerificationItems(records, promises)
	require.Len(t, items, 3)

	assert.Equal(t, entities.BugClassDenialOfService, items[0].Promise.BugClass, "inferred from description")
	assert.Equal(t, entities.SeverityHigh, items[0].Severity)
	require.NotNil(t, items[0].Record)
	assert.Equal(t, "CVE-2024-0001", items[0].Record.ID)

	assert.Equal(t, entities.BugClassIntegerOverflow, items[1].Promise.BugClass, "lent by the release note promise")
	assert.Equal(t, entities.SeverityUnknown, items[1].Severity)

	assert.Equal(t, "BUG-002", items[2].Promise.ID)
	assert.Nil(t, items[2].Record)
	assert.Equal(t, entities.SeverityUnknown, items[2].Severity)
}
