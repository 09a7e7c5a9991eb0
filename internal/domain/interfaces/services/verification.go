// Package services defines interfaces for domain service contracts.
package services

import (
	"github.com/ochairo/patchverify/internal/domain/entities"
)

// VerificationService holds the pure evidence and fusion logic of a scan
type VerificationService interface {
	// CheckRange evaluates a record's version bounds against the new version
	CheckRange(record entities.VulnerabilityRecord, newVersion string) entities.RangeCheck

	// MatchDiff correlates a diff with a promise description
	MatchDiff(diff entities.DiffResult, promise entities.Promise) entities.DiffCheck

	// CombineProbes folds old and new probe runs into one piece of evidence
	CombineProbes(oldVersion, newVersion string, oldRun, newRun entities.ProbeResult) entities.ProbeResult

	// Fuse turns the three evidence outputs into a verdict and its signals
	Fuse(rc entities.RangeCheck, dc entities.DiffCheck, probe entities.ProbeResult) (entities.Verdict, []entities.EvidenceSignal)

	// Aggregate rolls verdicts into a risk score
	Aggregate(verdicts []entities.PromiseVerdict) entities.RiskScore

	// MergeIntelligence dedupes records from sources given in priority order
	MergeIntelligence(sources ...[]entities.VulnerabilityRecord) []entities.VulnerabilityRecord
}
