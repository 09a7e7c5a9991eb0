package services

import (
	"math"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// FusionPolicy is the weight and threshold table used to fuse evidence
type FusionPolicy struct {
	RangeWeight       int `yaml:"range_weight" validate:"gte=0,lte=100"`
	DiffWeight        int `yaml:"diff_weight" validate:"gte=0,lte=100"`
	DiffUnclearWeight int `yaml:"diff_unclear_weight" validate:"gte=0,lte=100"`
	ProbeWeight       int `yaml:"probe_weight" validate:"gte=0,lte=100"`

	FixedStrong           float64 `yaml:"fixed_strong" validate:"gt=0,lte=1"`
	FixedWeak             float64 `yaml:"fixed_weak" validate:"gt=0,lte=1"`
	UnconfirmedFloor      float64 `yaml:"unconfirmed_floor" validate:"gte=0,lte=1"`
	OverrideCorroboration float64 `yaml:"override_corroboration" validate:"gte=0,lte=1"`
}

// DefaultFusionPolicy returns the stock weights: range 40, diff 35 (15 unclear), probe 25
func DefaultFusionPolicy() FusionPolicy {
	return FusionPolicy{
		RangeWeight:           40,
		DiffWeight:            35,
		DiffUnclearWeight:     15,
		ProbeWeight:           25,
		FixedStrong:           0.75,
		FixedWeak:             0.5,
		UnconfirmedFloor:      0.25,
		OverrideCorroboration: 0.4,
	}
}

// Signal line markers
const (
	markPositive     = "✅ "
	markNegative     = "❌ "
	markInconclusive = "⚠  "
	markAbsent       = "─  "
)

// BuildSignals converts evidence outputs into weighted signals and their rendered lines.
// Lines are always ordered range, diff, probe.
func (p FusionPolicy) BuildSignals(rc entities.RangeCheck, dc entities.DiffCheck, probe entities.ProbeResult) ([]entities.EvidenceSignal, []string) {
	signals := make([]entities.EvidenceSignal, 0, 3)
	lines := make([]string, 0, 3)

	switch {
	case isTrue(rc.Fixed):
		signals = append(signals, signal(entities.SignalVersionRange, entities.PolarityPositive, p.RangeWeight, rc.Detail))
		lines = append(lines, markPositive+"CVE version range: "+rc.Detail)
	case isFalse(rc.Fixed):
		signals = append(signals, signal(entities.SignalVersionRange, entities.PolarityNegative, p.RangeWeight, rc.Detail))
		lines = append(lines, markNegative+"CVE version range: "+rc.Detail)
	default:
		detail := orDefault(rc.Detail, "No version range data in NVD/OSV.")
		signals = append(signals, signal(entities.SignalVersionRange, entities.PolarityUnknown, 0, detail))
		lines = append(lines, markInconclusive+"CVE range: "+detail)
	}

	switch {
	case !dc.Checked:
		detail := orDefault(dc.Reason, "Not available.")
		signals = append(signals, signal(entities.SignalFileDiff, entities.PolarityUnknown, 0, detail))
		lines = append(lines, markAbsent+"File diff: "+detail)
	case isTrue(dc.FilesChanged):
		detail := orDefault(dc.Reason, "Relevant files changed.")
		signals = append(signals, signal(entities.SignalFileDiff, entities.PolarityPositive, p.DiffWeight, detail))
		lines = append(lines, markPositive+"File diff: "+detail)
	case isFalse(dc.FilesChanged):
		detail := orDefault(dc.Reason, "No relevant files changed.")
		signals = append(signals, signal(entities.SignalFileDiff, entities.PolarityNegative, p.DiffWeight, detail))
		lines = append(lines, markNegative+"File diff: "+detail)
	default:
		detail := orDefault(dc.Reason, "Change scope unclear.")
		signals = append(signals, signal(entities.SignalFileDiff, entities.PolarityPositive, p.DiffUnclearWeight, detail))
		lines = append(lines, markInconclusive+"File diff: "+detail)
	}

	switch {
	case !probe.Ran:
		detail := orDefault(probe.Reason, "Not applicable.")
		signals = append(signals, signal(entities.SignalBehavioralProbe, entities.PolarityUnknown, 0, detail))
		lines = append(lines, markAbsent+"Behavioral probe: "+detail)
	case isTrue(probe.Passed):
		detail := orDefault(probe.Message, "Passed.")
		signals = append(signals, signal(entities.SignalBehavioralProbe, entities.PolarityPositive, p.ProbeWeight, detail))
		lines = append(lines, markPositive+"Behavioral probe: "+detail)
	case isFalse(probe.Passed):
		detail := orDefault(probe.Message, "Failed.")
		signals = append(signals, signal(entities.SignalBehavioralProbe, entities.PolarityNegative, p.ProbeWeight, detail))
		lines = append(lines, markNegative+"Behavioral probe: "+detail)
	default:
		detail := orDefault(probe.Message, "Inconclusive.")
		signals = append(signals, signal(entities.SignalBehavioralProbe, entities.PolarityUnknown, 0, detail))
		lines = append(lines, markInconclusive+"Behavioral probe: "+detail)
	}

	return signals, lines
}

// Decide computes status and confidence from weighted signals. It is a pure function
// of its input, so identical signals always produce an identical verdict.
func (p FusionPolicy) Decide(signals []entities.EvidenceSignal) (entities.VerdictStatus, int) {
	var total, positive, contributing int
	rangeNegative := false

	for _, s := range signals {
		if !s.Contributes() {
			continue
		}
		contributing++
		total += s.Weight
		if s.Polarity == entities.PolarityPositive {
			positive += s.Weight
		}
		if s.Kind == entities.SignalVersionRange && s.Polarity == entities.PolarityNegative {
			rangeNegative = true
		}
	}

	if total == 0 {
		return entities.StatusUnconfirmed, 30
	}

	ratio := float64(positive) / float64(total)

	// An explicit out-of-range version overrides the other signals; they only
	// decide how confident the override is. A lone range assertion gets the flat 65.
	if rangeNegative {
		if contributing > 1 && ratio < p.OverrideCorroboration {
			return entities.StatusNotFixed, clampConfidence(math.Min(95, 60+(1-ratio)*35))
		}
		return entities.StatusNotFixed, 65
	}

	switch {
	case ratio >= p.FixedStrong:
		return entities.StatusFixed, clampConfidence(math.Min(97, 70+ratio*28))
	case ratio >= p.FixedWeak:
		return entities.StatusFixed, clampConfidence(math.Min(75, 50+ratio*30))
	case ratio >= p.UnconfirmedFloor:
		return entities.StatusUnconfirmed, clampConfidence(30 + ratio*30)
	default:
		return entities.StatusNotFixed, clampConfidence(math.Min(95, 60+(1-ratio)*35))
	}
}

// Fuse builds signals and decides the verdict for one promise
func (p FusionPolicy) Fuse(rc entities.RangeCheck, dc entities.DiffCheck, probe entities.ProbeResult) (entities.Verdict, []entities.EvidenceSignal) {
	signals, lines := p.BuildSignals(rc, dc, probe)
	status, confidence := p.Decide(signals)
	return entities.Verdict{Status: status, Confidence: confidence, Signals: lines}, signals
}

func signal(kind entities.SignalKind, pol entities.Polarity, weight int, detail string) entities.EvidenceSignal {
	if pol == entities.PolarityUnknown {
		weight = 0
	}
	return entities.EvidenceSignal{Kind: kind, Polarity: pol, Weight: weight, Detail: detail}
}

// clampConfidence truncates toward zero and bounds the result to [0,100]
func clampConfidence(v float64) int {
	c := int(v)
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
