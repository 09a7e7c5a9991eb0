package entities

import "time"

// ScanPhase names a stage of the scan pipeline
type ScanPhase string

// Scan phases in execution order
const (
	PhaseStarted      ScanPhase = "started"
	PhasePromises     ScanPhase = "promises"
	PhaseIntelligence ScanPhase = "intelligence"
	PhaseDiff         ScanPhase = "diff"
	PhaseEvidence     ScanPhase = "evidence"
	PhaseVerdict      ScanPhase = "verdict"
	PhaseAggregate    ScanPhase = "aggregate"
	PhasePersist      ScanPhase = "persist"
	PhaseCompleted    ScanPhase = "completed"
)

// ProgressEvent is one structured update emitted while a scan runs
type ProgressEvent struct {
	ScanID  string    `json:"scan_id"`
	Phase   ScanPhase `json:"phase"`
	Percent int       `json:"percent"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
