package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

const (
	maxRelevantFiles = 5
	maxReasonFiles   = 3
)

var descriptionToken = regexp.MustCompile(`\b([a-z][a-z0-9_]{2,})\b`)

// relevanceStopwords never count as a file-name match
var relevanceStopwords = map[string]struct{}{
	"fix": {}, "the": {}, "was": {}, "has": {}, "and": {}, "for": {}, "in": {},
	"fixed": {}, "fixes": {}, "with": {}, "from": {}, "that": {}, "this": {},
	"when": {}, "which": {}, "not": {}, "are": {}, "can": {}, "could": {},
	"via": {}, "into": {}, "allow": {}, "allows": {}, "before": {}, "after": {},
}

// DescriptionTokens extracts the identifier-like words of a promise description
func DescriptionTokens(description string) []string {
	matches := descriptionToken.FindAllString(strings.ToLower(description), -1)
	seen := make(map[string]struct{}, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, stop := relevanceStopwords[m]; stop {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		tokens = append(tokens, m)
	}
	return tokens
}

// MatchDiffRelevance reports whether the files changed between releases relate to a promise
func MatchDiffRelevance(diff entities.DiffResult, promise entities.Promise) entities.DiffCheck {
	if !diff.Available {
		reason := diff.Reason
		if reason == "" {
			reason = "File diff not available."
		}
		return entities.DiffCheck{Checked: false, Reason: reason}
	}

	modified := diff.Modified()
	if len(modified) == 0 {
		return entities.DiffCheck{
			Checked:      true,
			FilesChanged: entities.BoolPtr(false),
			Reason:       "No files changed between versions; fix may not have been applied.",
		}
	}

	tokens := DescriptionTokens(promise.Description)
	var relevant []string
	for _, f := range modified {
		lower := strings.ToLower(f)
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				relevant = append(relevant, f)
				break
			}
		}
	}

	if len(relevant) == 0 {
		return entities.DiffCheck{
			Checked: true,
			Reason:  fmt.Sprintf("%d file(s) changed but none clearly match the promise description.", len(modified)),
		}
	}

	if len(relevant) > maxRelevantFiles {
		relevant = relevant[:maxRelevantFiles]
	}
	shown := relevant
	if len(shown) > maxReasonFiles {
		shown = shown[:maxReasonFiles]
	}
	return entities.DiffCheck{
		Checked:      true,
		FilesChanged: entities.BoolPtr(true),
		Relevant:     relevant,
		Reason:       "Relevant file(s) changed: " + strings.Join(shown, ", "),
	}
}
