package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	orchestrators "github.com/ochairo/patchverify/internal/domain-orchestrators"
	"github.com/ochairo/patchverify/internal/domain/entities"
)

const rule = "──────────────────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// renderProgress prints events until the channel closes
func renderProgress(w io.Writer, events <-chan entities.ProgressEvent) {
	for ev := range events {
		fmt.Fprintf(w, "[%3d%%] %s\n", ev.Percent, ev.Message)
	}
}

func riskIcon(label entities.RiskLabel) string {
	switch label {
	case entities.RiskCritical:
		return "🔴"
	case entities.RiskHigh:
		return "🟠"
	case entities.RiskMedium:
		return "🟡"
	case entities.RiskLow:
		return "🟢"
	default:
		return "⚪"
	}
}

func statusIcon(status entities.VerdictStatus) string {
	switch status {
	case entities.StatusFixed:
		return "✅"
	case entities.StatusNotFixed:
		return "❌"
	default:
		return "⚠️ "
	}
}

func renderScanRecord(w io.Writer, rec *entities.ScanRecord) {
	fmt.Fprintf(w, "\n🔍 PatchVerify: %s %s → %s", rec.App, rec.OldVersion, rec.NewVersion)
	if rec.Ecosystem != entities.EcosystemNone {
		fmt.Fprintf(w, " (%s)", rec.Ecosystem)
	}
	fmt.Fprintf(w, "\n   Scan ID: %s\n\n", rec.ScanID)

	for _, v := range rec.Verdicts {
		fmt.Fprintf(w, "%s %s  %s (%d%% confidence)", statusIcon(v.Verdict.Status), v.Promise.ID, v.Verdict.Status, v.Verdict.Confidence)
		if v.Severity != "" && v.Severity != entities.SeverityUnknown {
			fmt.Fprintf(w, "  [%s]", v.Severity)
		}
		fmt.Fprintln(w)
		if d := truncate(v.Promise.Description, 100); d != "" {
			fmt.Fprintf(w, "   %s\n", d)
		}
		for _, line := range v.Verdict.Signals {
			fmt.Fprintf(w, "     %s\n", line)
		}
		fmt.Fprintln(w)
	}

	if len(rec.Notes) > 0 {
		fmt.Fprintln(w, "📝 Notes")
		for _, n := range rec.Notes {
			fmt.Fprintf(w, "   - %s\n", n)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "📊 Summary: %d promise(s) checked\n", rec.Total)
	fmt.Fprintf(w, "   ✅ Fixed: %d   ❌ Not fixed: %d   ⚠️  Unconfirmed: %d\n", rec.Fixed, rec.NotFixed, rec.Unconfirmed)
	fmt.Fprintf(w, "   %s Risk: %s (%.1f/100)\n", riskIcon(rec.RiskLabel), rec.RiskLabel, rec.RiskScore)
	fmt.Fprintf(w, "   %s\n", orchestrators.Recommendation(rec))
	fmt.Fprintln(w, rule)
}

func renderHistory(w io.Writer, rows []entities.ScanSummary) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "Scan history is empty. Run a scan first.")
		return
	}
	fmt.Fprintf(w, "\nPatchVerify scan history (%d scans)\n\n%s\n", len(rows), rule)
	for _, r := range rows {
		fmt.Fprintf(w, "  %s  %s → %s  [%s %s  %.1f/100]  %s\n",
			r.App, r.OldVersion, r.NewVersion, riskIcon(r.RiskLabel), r.RiskLabel, r.RiskScore, r.ScanID)
		fmt.Fprintf(w, "  Fixed: %d/%d  Not fixed: %d  Unconfirmed: %d  | %s\n",
			r.Fixed, r.Total, r.NotFixed, r.Unconfirmed, r.Completed.Format("2006-01-02"))
		fmt.Fprintln(w, rule)
	}
}

func renderCatalog(w io.Writer, catalog *entities.ProbeCatalog) {
	fmt.Fprintf(w, "Behavioral probes (%d bug classes)\n\n", catalog.Len())
	for _, class := range catalog.BugClasses() {
		spec, _ := catalog.Lookup(class)
		row := newProbeRow(spec)
		fmt.Fprintf(w, "  %-18s %s\n", class, spec.Description)
		fmt.Fprintf(w, "  %-18s entry points: %s; ecosystems: %s\n", "",
			strings.Join(row.EntryPoints, ", "), strings.Join(row.Ecosystems, ", "))
	}
}

func renderProbeResult(w io.Writer, pkg, ver string, class entities.BugClass, r entities.ProbeResult) {
	fmt.Fprintf(w, "🧪 %s probe on %s %s\n", class, pkg, ver)
	fmt.Fprintf(w, "   State: %s\n", r.State)
	if !r.Ran {
		fmt.Fprintf(w, "   Not run: %s\n", r.Reason)
		return
	}
	verdict := "inconclusive"
	switch {
	case r.Passed == nil:
	case *r.Passed:
		verdict = "passed"
	default:
		verdict = "failed"
	}
	fmt.Fprintf(w, "   Outcome: %s (%s)\n", r.Outcome, verdict)
	if r.Message != "" {
		fmt.Fprintf(w, "   %s\n", r.Message)
	}
	if r.Duration > 0 {
		fmt.Fprintf(w, "   Took %s\n", r.Duration.Round(time.Millisecond))
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
