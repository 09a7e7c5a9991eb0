package gateways

import (
	"context"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
	"github.com/ochairo/patchverify/internal/domain/services"
)

// releaseNotesFetcher is the part of the GitHub gateway promise collection needs
type releaseNotesFetcher interface {
	FetchReleaseNotes(ctx context.Context, app, version string) (*entities.ReleaseNotes, error)
}

// releaseNotesSource extracts promises from GitHub release notes
type releaseNotesSource struct {
	github releaseNotesFetcher
	logger interfaces.Logger
}

// NewReleaseNotesSource creates a PromiseSource backed by GitHub releases
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewReleaseNotesSource(github releaseNotesFetcher, logger interfaces.Logger) *releaseNotesSource {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &releaseNotesSource{github: github, logger: logger}
}

// CollectPromises returns the promises stated in app's notes for version.
// Missing notes are not an error; the scan continues with CVE data alone.
func (s *releaseNotesSource) CollectPromises(ctx context.Context, app, version string) ([]entities.Promise, error) {
	notes, err := s.github.FetchReleaseNotes(ctx, app, version)
	if err != nil {
		return nil, err
	}
	if notes == nil || notes.Body == "" {
		return nil, nil
	}
	promises := services.ExtractPromises(notes.Body)
	s.logger.Info("extracted promises from release notes",
		interfaces.F("repo", notes.Repository),
		interfaces.F("tag", notes.Tag),
		interfaces.F("count", len(promises)))
	return promises, nil
}
