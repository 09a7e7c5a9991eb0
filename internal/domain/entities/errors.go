package entities

import "errors"

// Error taxonomy shared by adapters and the scan orchestrator.
// Adapters wrap these with fmt.Errorf("...: %w", err); callers classify with errors.Is.
var (
	// ErrExternalService indicates an intelligence source, registry or GitHub call failed
	ErrExternalService = errors.New("external service unavailable")

	// ErrAmbiguousVersion indicates a version string could not be compared semantically
	ErrAmbiguousVersion = errors.New("ambiguous version")

	// ErrProbeInfrastructure indicates the probe sandbox could not be set up (install, missing runtime)
	ErrProbeInfrastructure = errors.New("probe infrastructure failure")

	// ErrProbeTimeout indicates a probe exceeded its wall-clock budget
	ErrProbeTimeout = errors.New("probe timed out")

	// ErrUnsupportedEcosystem indicates the package ecosystem has no diff or probe support
	ErrUnsupportedEcosystem = errors.New("unsupported ecosystem")

	// ErrArtifactIntegrity indicates a downloaded artifact failed its checksum or signature check
	ErrArtifactIntegrity = errors.New("artifact integrity check failed")

	// ErrScanNotFound indicates a history lookup for an unknown scan id
	ErrScanNotFound = errors.New("scan not found")
)
