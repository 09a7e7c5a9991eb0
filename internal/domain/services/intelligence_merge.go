package services

import (
	"github.com/ochairo/patchverify/internal/domain/entities"
)

// VerificationItem is one promise queued for evidence collection, with the
// record that describes it when intelligence sources know about it
type VerificationItem struct {
	Promise  entities.Promise
	Record   *entities.VulnerabilityRecord
	Severity entities.Severity
}

// MergeIntelligence dedupes records by id. Sources are given in priority order;
// a later duplicate only fills version bounds or a score the earlier one lacks.
func MergeIntelligence(sources ...[]entities.VulnerabilityRecord) []entities.VulnerabilityRecord {
	index := make(map[string]int)
	var merged []entities.VulnerabilityRecord

	for _, records := range sources {
		for _, r := range records {
			i, seen := index[r.ID]
			if !seen {
				index[r.ID] = len(merged)
				merged = append(merged, r)
				continue
			}
			existing := merged[i]
			if existing.FixedIn == "" && r.FixedIn != "" {
				existing.FixedIn = r.FixedIn
			}
			if existing.AffectedBelow == "" && r.AffectedBelow != "" {
				existing.AffectedBelow = r.AffectedBelow
			}
			if existing.Score == nil && r.Score != nil {
				score := *r.Score
				existing.Score = &score
				existing.Severity = r.Severity
			}
			if len(existing.References) == 0 {
				existing.References = r.References
			}
			merged[i] = existing
		}
	}
	return merged
}

// AddPromiseStubs appends a release-notes-only record for each CVE promise that no
// intelligence source reported
func AddPromiseStubs(records []entities.VulnerabilityRecord, promises []entities.Promise) []entities.VulnerabilityRecord {
	known := make(map[string]struct{}, len(records))
	for _, r := range records {
		known[r.ID] = struct{}{}
	}
	out := append([]entities.VulnerabilityRecord(nil), records...)
	for _, p := range promises {
		if p.Type != entities.PromiseCVE {
			continue
		}
		if _, ok := known[p.ID]; ok {
			continue
		}
		known[p.ID] = struct{}{}
		out = append(out, entities.VulnerabilityRecord{
			ID:          p.ID,
			Description: p.Description,
			Severity:    entities.SeverityUnknown,
			Source:      entities.SourceReleaseNotesOnly,
		})
	}
	return out
}

// BuildVerificationItems lists the records followed by the bug-fix promises.
// A CVE promise naming a record lends it its bug class; otherwise the class is
// inferred from the record description.
func BuildVerificationItems(records []entities.VulnerabilityRecord, promises []entities.Promise) []VerificationItem {
	classes := make(map[string]entities.BugClass)
	for _, p := range promises {
		if p.Type == entities.PromiseCVE && p.BugClass != "" {
			classes[p.ID] = p.BugClass
		}
	}

	items := make([]VerificationItem, 0, len(records)+len(promises))
	for i := range records {
		r := records[i]
		class, ok := classes[r.ID]
		if !ok {
			class = DetectBugClass(r.Description)
		}
		severity := r.Severity
		if severity == "" {
			severity = entities.SeverityUnknown
		}
		items = append(items, VerificationItem{
			Promise: entities.Promise{
				Type:        entities.PromiseCVE,
				ID:          r.ID,
				Description: r.Description,
				BugClass:    class,
				Source:      r.Source,
			},
			Record:   &r,
			Severity: severity,
		})
	}

	for _, p := range promises {
		if p.Type != entities.PromiseBugFix {
			continue
		}
		items = append(items, VerificationItem{Promise: p, Severity: entities.SeverityUnknown})
	}
	return items
}
