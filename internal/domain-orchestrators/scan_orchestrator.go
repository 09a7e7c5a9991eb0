// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
	"github.com/ochairo/patchverify/internal/domain/interfaces/gateways"
	"github.com/ochairo/patchverify/internal/domain/interfaces/repositories"
	domainservices "github.com/ochairo/patchverify/internal/domain/interfaces/services"
	"github.com/ochairo/patchverify/internal/domain/services"
)

const defaultWorkers = 4

// Recorder receives scan telemetry
type Recorder interface {
	ObserveScan(record *entities.ScanRecord)
	ObserveProbe(class entities.BugClass, result entities.ProbeResult)
	ObserveIntelligence(source string, err error)
}

type noopRecorder struct{}

func (noopRecorder) ObserveScan(*entities.ScanRecord)                    {}
func (noopRecorder) ObserveProbe(entities.BugClass, entities.ProbeResult) {}
func (noopRecorder) ObserveIntelligence(string, error)                   {}

// ScanOrchestratorConfig holds configuration for the orchestrator
type ScanOrchestratorConfig struct {
	// Workers bounds concurrent per-promise evidence collection
	Workers int
	// ProbeEnabled turns behavioral probing on; a request can still skip it
	ProbeEnabled bool
	// Recorder receives metrics; nil disables them
	Recorder Recorder
}

// ScanOrchestrator runs the promise verification pipeline for one upgrade
type ScanOrchestrator struct {
	evidence     gateways.EvidenceGateway
	verification domainservices.VerificationService
	history      repositories.HistoryRepository
	recorder     Recorder
	progress     *ProgressStream
	logger       interfaces.Logger
	workers      int
	probeEnabled bool
	newID        func() string
	now          func() time.Time
}

// NewScanOrchestrator creates a new scan orchestrator. history may be nil to skip persistence.
func NewScanOrchestrator(
	evidence gateways.EvidenceGateway,
	verification domainservices.VerificationService,
	history repositories.HistoryRepository,
	config ScanOrchestratorConfig,
	logger interfaces.Logger,
) *ScanOrchestrator {
	workers := config.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	recorder := config.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ScanOrchestrator{
		evidence:     evidence,
		verification: verification,
		history:      history,
		recorder:     recorder,
		progress:     NewProgressStream(),
		logger:       logger,
		workers:      workers,
		probeEnabled: config.ProbeEnabled,
		newID:        func() string { return uuid.NewString() },
		now:          time.Now,
	}
}

// Progress returns the stream every scan publishes to
func (o *ScanOrchestrator) Progress() *ProgressStream {
	return o.progress
}

// scanState carries one scan through its phases
type scanState struct {
	req       entities.ScanRequest
	record    *entities.ScanRecord
	ecosystem entities.Ecosystem
	promises  []entities.Promise
	items     []services.VerificationItem
	diff      entities.DiffResult
}

func (s *scanState) note(format string, args ...any) {
	s.record.Notes = append(s.record.Notes, fmt.Sprintf(format, args...))
}

// Scan verifies the promises of req.NewVersion. It fails only on an invalid request
// or an unresolvable "latest"; every other external failure degrades into a note
// on the returned record.
func (o *ScanOrchestrator) Scan(ctx context.Context, req entities.ScanRequest) (*entities.ScanRecord, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	st := &scanState{
		req: req,
		record: &entities.ScanRecord{
			ScanID:     o.newID(),
			App:        req.App,
			OldVersion: req.OldVersion,
			NewVersion: req.NewVersion,
			Started:    o.now().UTC(),
		},
	}
	o.logger.Info("scan started",
		interfaces.F("scan_id", st.record.ScanID),
		interfaces.F("app", req.App),
		interfaces.F("old", req.OldVersion),
		interfaces.F("new", req.NewVersion))
	o.emit(st, entities.PhaseStarted, 0, fmt.Sprintf("Scanning %s %s → %s", req.App, req.OldVersion, req.NewVersion))

	o.detectEcosystem(ctx, st)
	if err := o.resolveLatest(ctx, st); err != nil {
		return nil, err
	}
	o.collectPromises(ctx, st)
	o.lookupIntelligence(ctx, st)

	if len(st.items) == 0 {
		st.note("Nothing to verify. Try a different app name or version.")
	} else {
		o.diffReleases(ctx, st)
		o.verifyItems(ctx, st)
	}

	o.finish(ctx, st)
	return st.record, nil
}

func validateRequest(req entities.ScanRequest) error {
	switch {
	case strings.TrimSpace(req.App) == "":
		return fmt.Errorf("app name is required")
	case strings.TrimSpace(req.OldVersion) == "" || strings.TrimSpace(req.NewVersion) == "":
		return fmt.Errorf("both old and new versions are required")
	}
	return nil
}

func (o *ScanOrchestrator) detectEcosystem(ctx context.Context, st *scanState) {
	if st.req.Ecosystem != entities.EcosystemNone {
		st.ecosystem = st.req.Ecosystem
	} else {
		eco, err := o.evidence.DetectEcosystem(ctx, st.req.App)
		if err != nil {
			o.logger.Warn("ecosystem detection failed", interfaces.F("error", err.Error()))
			st.note("Ecosystem detection failed: %v", err)
		}
		st.ecosystem = eco
	}
	st.record.Ecosystem = st.ecosystem

	if st.ecosystem == entities.EcosystemNone {
		st.note("Could not detect ecosystem; using GitHub and NVD only.")
		o.emit(st, entities.PhasePromises, 5, "Ecosystem not detected")
		return
	}
	o.emit(st, entities.PhasePromises, 5, fmt.Sprintf("Detected ecosystem: %s", st.ecosystem))
}

// resolveLatest replaces a "latest" new version with the registry's current release
func (o *ScanOrchestrator) resolveLatest(ctx context.Context, st *scanState) error {
	if !entities.IsLatestVersion(st.req.NewVersion) {
		return nil
	}
	if !st.ecosystem.Supported() {
		return fmt.Errorf("cannot resolve latest version of %s without a PyPI or npm ecosystem", st.req.App)
	}
	v, err := o.evidence.LatestVersion(ctx, st.req.App, st.ecosystem)
	if err != nil {
		return fmt.Errorf("failed to resolve latest version of %s: %w", st.req.App, err)
	}
	st.req.NewVersion = v
	st.record.NewVersion = v
	st.note("Resolved latest to %s.", v)
	return nil
}

func (o *ScanOrchestrator) collectPromises(ctx context.Context, st *scanState) {
	if len(st.req.Promises) > 0 {
		st.promises = append([]entities.Promise(nil), st.req.Promises...)
		o.emit(st, entities.PhasePromises, 10, fmt.Sprintf("Using %d promise(s) supplied with the request", len(st.promises)))
		return
	}

	promises, err := o.evidence.CollectPromises(ctx, st.req.App, st.req.NewVersion)
	switch {
	case err != nil:
		o.logger.Warn("release notes unavailable", interfaces.F("error", err.Error()))
		st.note("Release notes unavailable: %v", err)
	case len(promises) == 0:
		st.note("No fix promises found in release notes; falling back to NVD/OSV only.")
	}
	st.promises = promises
	o.emit(st, entities.PhasePromises, 10, fmt.Sprintf("Extracted %d fix promise(s) from release notes", len(promises)))
}

// lookupIntelligence queries every source for the old version in parallel and merges
// the results in source priority order
func (o *ScanOrchestrator) lookupIntelligence(ctx context.Context, st *scanState) {
	sources := o.evidence.IntelligenceSources()
	results := make([][]entities.VulnerabilityRecord, len(sources))
	failures := make([]error, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			records, err := src.Query(ctx, st.req.App, st.req.OldVersion, st.ecosystem)
			o.recorder.ObserveIntelligence(src.Name(), err)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range failures {
		if err == nil {
			continue
		}
		name := strings.ToUpper(sources[i].Name())
		o.logger.Warn("intelligence lookup failed", interfaces.F("source", sources[i].Name()), interfaces.F("error", err.Error()))
		if errors.Is(err, entities.ErrExternalService) {
			st.note("%s unavailable: %v", name, err)
		} else {
			st.note("%s lookup failed: %v", name, err)
		}
	}

	records := o.verification.MergeIntelligence(results...)
	records = services.AddPromiseStubs(records, st.promises)
	st.items = services.BuildVerificationItems(records, st.promises)

	o.emit(st, entities.PhaseIntelligence, 25,
		fmt.Sprintf("%d known vulnerabilit(ies), %d item(s) to verify", len(records), len(st.items)))
}

func (o *ScanOrchestrator) diffReleases(ctx context.Context, st *scanState) {
	switch {
	case st.req.SkipDiff:
		st.diff = entities.DiffUnavailable("File diff skipped.")
	case !st.ecosystem.Supported():
		st.diff = entities.DiffUnavailable("File diff requires PyPI or npm ecosystem.")
	default:
		st.diff = o.evidence.DiffReleases(ctx, st.req.App, st.req.OldVersion, st.req.NewVersion, st.ecosystem)
	}

	if st.diff.Available {
		o.emit(st, entities.PhaseDiff, 40,
			fmt.Sprintf("File diff complete: %d/%d files changed", len(st.diff.Changed), st.diff.TotalFiles))
		return
	}
	if !st.req.SkipDiff {
		st.note("File diff unavailable: %s", st.diff.Reason)
	}
	o.emit(st, entities.PhaseDiff, 40, "File diff unavailable: "+st.diff.Reason)
}

// verifyItems collects evidence and fuses a verdict for every item.
// Each worker writes only its own slot.
func (o *ScanOrchestrator) verifyItems(ctx context.Context, st *scanState) {
	verdicts := make([]entities.PromiseVerdict, len(st.items))
	var done atomic.Int32
	total := len(st.items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, item := range st.items {
		g.Go(func() error {
			verdicts[i] = o.verifyItem(gctx, st, item)
			n := int(done.Add(1))
			o.emit(st, entities.PhaseEvidence, 40+50*n/total,
				fmt.Sprintf("%s: %s (%d%%)", item.Promise.ID, verdicts[i].Verdict.Status, verdicts[i].Verdict.Confidence))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		st.note("Scan interrupted: %v; remaining evidence is incomplete.", err)
	}
	st.record.Verdicts = verdicts
}

func (o *ScanOrchestrator) verifyItem(ctx context.Context, st *scanState, item services.VerificationItem) entities.PromiseVerdict {
	rc := entities.RangeCheck{Method: entities.RangeMethodNone, Detail: "No version range data available."}
	if item.Record != nil {
		rc = o.verification.CheckRange(*item.Record, st.req.NewVersion)
	}

	dc := o.verification.MatchDiff(st.diff, item.Promise)
	probe := o.probe(ctx, st, item.Promise)
	verdict, signals := o.verification.Fuse(rc, dc, probe)

	o.logger.Debug("promise verified",
		interfaces.F("id", item.Promise.ID),
		interfaces.F("status", string(verdict.Status)),
		interfaces.F("confidence", verdict.Confidence))

	return entities.PromiseVerdict{
		Promise:  item.Promise,
		Record:   item.Record,
		Severity: item.Severity,
		Verdict:  verdict,
		Evidence: signals,
	}
}

// probe runs the bug class probe against both releases in parallel and combines them
func (o *ScanOrchestrator) probe(ctx context.Context, st *scanState, promise entities.Promise) entities.ProbeResult {
	switch {
	case !o.probeEnabled || st.req.SkipProbe:
		return entities.NotRun("Behavioral probing skipped.")
	case promise.BugClass == "":
		return entities.NotRun("Not applicable.")
	case !st.ecosystem.Supported():
		return entities.NotRun("Behavioral probing requires PyPI or npm ecosystem.")
	}

	var oldRun, newRun entities.ProbeResult
	var g errgroup.Group
	g.Go(func() error {
		oldRun = o.evidence.RunProbe(ctx, entities.ProbeRequest{
			Package: st.req.App, Version: st.req.OldVersion, BugClass: promise.BugClass, Ecosystem: st.ecosystem,
		})
		return nil
	})
	g.Go(func() error {
		newRun = o.evidence.RunProbe(ctx, entities.ProbeRequest{
			Package: st.req.App, Version: st.req.NewVersion, BugClass: promise.BugClass, Ecosystem: st.ecosystem,
		})
		return nil
	})
	_ = g.Wait()

	o.recorder.ObserveProbe(promise.BugClass, oldRun)
	o.recorder.ObserveProbe(promise.BugClass, newRun)
	return o.verification.CombineProbes(st.req.OldVersion, st.req.NewVersion, oldRun, newRun)
}

func (o *ScanOrchestrator) finish(ctx context.Context, st *scanState) {
	rec := st.record
	risk := o.verification.Aggregate(rec.Verdicts)
	rec.Total = len(rec.Verdicts)
	rec.Fixed, rec.NotFixed, rec.Unconfirmed = services.CountStatuses(rec.Verdicts)
	rec.RiskScore = risk.Score
	rec.RiskLabel = risk.Label
	rec.Completed = o.now().UTC()
	o.emit(st, entities.PhaseAggregate, 95, fmt.Sprintf("Overall risk: %s (%.1f/100)", risk.Label, risk.Score))

	if o.history != nil {
		// A cancelled scan is still worth keeping
		if err := o.history.Save(context.WithoutCancel(ctx), rec); err != nil {
			o.logger.Error("failed to save scan history", interfaces.F("scan_id", rec.ScanID), interfaces.F("error", err.Error()))
			rec.Notes = append(rec.Notes, fmt.Sprintf("History not saved: %v", err))
		}
		o.emit(st, entities.PhasePersist, 98, "Scan saved to history")
	}

	o.recorder.ObserveScan(rec)
	o.logger.Info("scan completed",
		interfaces.F("scan_id", rec.ScanID),
		interfaces.F("total", rec.Total),
		interfaces.F("fixed", rec.Fixed),
		interfaces.F("not_fixed", rec.NotFixed),
		interfaces.F("unconfirmed", rec.Unconfirmed),
		interfaces.F("risk", string(rec.RiskLabel)))
	o.emit(st, entities.PhaseCompleted, 100, Recommendation(rec))
}

func (o *ScanOrchestrator) emit(st *scanState, phase entities.ScanPhase, percent int, msg string) {
	o.progress.Publish(entities.ProgressEvent{
		ScanID:  st.record.ScanID,
		Phase:   phase,
		Percent: percent,
		Message: msg,
		Time:    o.now().UTC(),
	})
}

// Recommendation summarises what a scan means for the upgrade decision
func Recommendation(rec *entities.ScanRecord) string {
	switch {
	case rec.Total == 0:
		return "Nothing to verify."
	case rec.NotFixed > 0:
		return fmt.Sprintf("Do NOT fully trust this update. %d promise(s) remain unpatched.", rec.NotFixed)
	case rec.Unconfirmed > 0:
		return fmt.Sprintf("Update appears mostly safe but %d promise(s) unconfirmed.", rec.Unconfirmed)
	default:
		return "All checked promises appear to be fixed."
	}
}
