package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

type bugPattern struct {
	class   entities.BugClass
	pattern *regexp.Regexp
}

// bugPatterns are checked in order; the first match names the class
var bugPatterns = []bugPattern{
	{entities.BugClassBufferOverflow, regexp.MustCompile(`buffer overflow|stack overflow|heap overflow|out.of.bounds write`)},
	{entities.BugClassMemoryLeak, regexp.MustCompile(`memory leak|mem leak|resource leak|unreleased memory`)},
	{entities.BugClassNullPointer, regexp.MustCompile(`null pointer|null dereference|nullptr|segfault|segmentation fault`)},
	{entities.BugClassIntegerOverflow, regexp.MustCompile(`integer overflow|int overflow|arithmetic overflow|wrap.around`)},
	{entities.BugClassInputValidation, regexp.MustCompile(`input validation|improper validation|sanitiz|injection|xss|sql injection`)},
	{entities.BugClassUseAfterFree, regexp.MustCompile(`use.after.free|uaf|dangling pointer|freed memory`)},
	{entities.BugClassRaceCondition, regexp.MustCompile(`race condition|data race|concurrency|thread safe`)},
	{entities.BugClassDenialOfService, regexp.MustCompile(`denial.of.service|dos |crash|hang |infinite loop|deadlock`)},
	{entities.BugClassAuthBypass, regexp.MustCompile(`auth.bypass|authentication bypass|privilege escalat|unauthorized access`)},
	{entities.BugClassInformationLeak, regexp.MustCompile(`information (leak|disclosure)|data (leak|exposure)|sensitive data`)},
}

var (
	cvePattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,7}`)
	fixVerbs   = regexp.MustCompile(`(?i)\b(fix(ed|es)?|patch(ed)?|resolv(ed|es)?|correct(ed)?|address(ed)?|mitigat(ed)?|remediat(ed)?|clos(ed|es)?)\b`)
)

const maxPromiseDescription = 200

// DetectBugClass returns the first bug class whose keywords appear in text
func DetectBugClass(text string) entities.BugClass {
	lower := strings.ToLower(text)
	for _, bp := range bugPatterns {
		if bp.pattern.MatchString(lower) {
			return bp.class
		}
	}
	return ""
}

// ExtractPromises scans release notes line by line for fix claims.
// Every CVE id mentioned becomes a cve promise; a fix verb plus a recognised
// bug class on a line without CVEs becomes a bug_fix promise.
func ExtractPromises(notes string) []entities.Promise {
	var promises []entities.Promise
	for _, raw := range strings.Split(notes, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		desc := truncate(line, maxPromiseDescription)
		cves := cvePattern.FindAllString(line, -1)

		for _, id := range cves {
			promises = append(promises, entities.Promise{
				Type:        entities.PromiseCVE,
				ID:          strings.ToUpper(id),
				Description: desc,
				BugClass:    DetectBugClass(line),
				Source:      entities.PromiseSourceReleaseNotes,
				RawLine:     line,
			})
		}

		if len(cves) == 0 && fixVerbs.MatchString(line) {
			if class := DetectBugClass(line); class != "" {
				promises = append(promises, entities.Promise{
					Type:        entities.PromiseBugFix,
					ID:          fmt.Sprintf("BUG-%03d", len(promises)+1),
					Description: desc,
					BugClass:    class,
					Source:      entities.PromiseSourceReleaseNotes,
					RawLine:     line,
				})
			}
		}
	}
	return promises
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
