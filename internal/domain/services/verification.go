package services

import (
	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces/services"
)

// verificationService implements VerificationService with pure business logic
type verificationService struct {
	policy FusionPolicy
}

// NewVerificationService creates a verification service using the given fusion policy
func NewVerificationService(policy FusionPolicy) services.VerificationService {
	return &verificationService{policy: policy}
}

// CheckRange evaluates a record's version bounds
func (s *verificationService) CheckRange(record entities.VulnerabilityRecord, newVersion string) entities.RangeCheck {
	return CheckVersionRange(record, newVersion)
}

// MatchDiff correlates changed files with a promise
func (s *verificationService) MatchDiff(diff entities.DiffResult, promise entities.Promise) entities.DiffCheck {
	return MatchDiffRelevance(diff, promise)
}

// CombineProbes folds old and new probe runs
func (s *verificationService) CombineProbes(oldVersion, newVersion string, oldRun, newRun entities.ProbeResult) entities.ProbeResult {
	return CombineProbeRuns(oldVersion, newVersion, oldRun, newRun)
}

// Fuse computes the verdict for one promise
func (s *verificationService) Fuse(rc entities.RangeCheck, dc entities.DiffCheck, probe entities.ProbeResult) (entities.Verdict, []entities.EvidenceSignal) {
	return s.policy.Fuse(rc, dc, probe)
}

// Aggregate rolls verdicts into a risk score
func (s *verificationService) Aggregate(verdicts []entities.PromiseVerdict) entities.RiskScore {
	return AggregateRisk(verdicts)
}

// MergeIntelligence dedupes records across sources
func (s *verificationService) MergeIntelligence(sources ...[]entities.VulnerabilityRecord) []entities.VulnerabilityRecord {
	return MergeIntelligence(sources...)
}
