// Package services implements domain business logic and use cases.
package services

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// pep440Pre matches PEP 440 pre-releases such as 2.0.0rc1 or 1.4b2
var pep440Pre = regexp.MustCompile(`^(\d+(?:\.\d+){0,2})[-.]?(a|b|rc|alpha|beta)\.?(\d+)$`)

// CanonicalVersion converts a package version into a comparable semver string.
// It returns "" when the version cannot be compared semantically.
func CanonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "=<>~^ ")
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	if v == "" {
		return ""
	}

	if m := pep440Pre.FindStringSubmatch(v); m != nil {
		tag := m[2]
		switch tag {
		case "alpha":
			tag = "a"
		case "beta":
			tag = "b"
		}
		// semver only allows a pre-release on a full major.minor.patch triple
		core := m[1]
		for strings.Count(core, ".") < 2 {
			core += ".0"
		}
		v = fmt.Sprintf("%s-%s.%s", core, tag, m[3])
	}

	sv := "v" + v
	if !semver.IsValid(sv) {
		return ""
	}
	return semver.Canonical(sv)
}

// CompareVersions compares two versions semantically, never lexically.
// It returns entities.ErrAmbiguousVersion when either side is not comparable.
func CompareVersions(a, b string) (int, error) {
	ca, cb := CanonicalVersion(a), CanonicalVersion(b)
	if ca == "" {
		return 0, fmt.Errorf("%w: %q", entities.ErrAmbiguousVersion, a)
	}
	if cb == "" {
		return 0, fmt.Errorf("%w: %q", entities.ErrAmbiguousVersion, b)
	}
	return semver.Compare(ca, cb), nil
}

// CheckVersionRange decides whether newVersion lies outside a record's vulnerable range.
// fixed_in takes precedence over affected_below; malformed bounds fall through.
func CheckVersionRange(record entities.VulnerabilityRecord, newVersion string) entities.RangeCheck {
	if record.Source == entities.SourceReleaseNotesOnly {
		return entities.RangeCheck{
			Method: entities.RangeMethodNone,
			Detail: "No version range data available.",
		}
	}

	if record.FixedIn != "" {
		if cmp, err := CompareVersions(newVersion, record.FixedIn); err == nil {
			if cmp >= 0 {
				return entities.RangeCheck{
					Fixed:  entities.BoolPtr(true),
					Method: entities.RangeMethodFixedIn,
					Detail: fmt.Sprintf("Fixed in >= %s. New version %s is safe.", record.FixedIn, newVersion),
				}
			}
			return entities.RangeCheck{
				Fixed:  entities.BoolPtr(false),
				Method: entities.RangeMethodFixedIn,
				Detail: fmt.Sprintf("Fixed in >= %s. New version %s is still vulnerable.", record.FixedIn, newVersion),
			}
		}
	}

	if record.AffectedBelow != "" {
		if cmp, err := CompareVersions(newVersion, record.AffectedBelow); err == nil {
			if cmp < 0 {
				return entities.RangeCheck{
					Fixed:  entities.BoolPtr(false),
					Method: entities.RangeMethodAffectedBelow,
					Detail: fmt.Sprintf("Affects versions below %s. New version %s is still affected.", record.AffectedBelow, newVersion),
				}
			}
			return entities.RangeCheck{
				Fixed:  entities.BoolPtr(true),
				Method: entities.RangeMethodAffectedBelow,
				Detail: fmt.Sprintf("Affects versions below %s. New version %s is safe.", record.AffectedBelow, newVersion),
			}
		}
	}

	return entities.RangeCheck{
		Method: entities.RangeMethodNoRangeData,
		Detail: "NVD/OSV did not provide clean version range data for this CVE.",
	}
}
