package gateways

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
)

const defaultGitHubAPI = "https://api.github.com"

// HTTPGitHubGateway fetches release notes from the GitHub REST API
type HTTPGitHubGateway struct {
	apiURL string
	client *apiClient
	token  string
	logger interfaces.Logger
}

// NewHTTPGitHubGateway creates a new GitHub gateway; token may be empty
func NewHTTPGitHubGateway(client *apiClient, apiURL, token string, logger interfaces.Logger) *HTTPGitHubGateway {
	if apiURL == "" {
		apiURL = defaultGitHubAPI
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &HTTPGitHubGateway{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		client: client,
		token:  token,
		logger: logger,
	}
}

// githubRelease represents the GitHub API release format
type githubRelease struct {
	ID          int64  `json:"id,omitempty"`
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	Body        string `json:"body"`
	Draft       bool   `json:"draft"`
	Prerelease  bool   `json:"prerelease"`
	PublishedAt string `json:"published_at,omitempty"`
	HTMLURL     string `json:"html_url,omitempty"`
}

type githubSearchResult struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		FullName string `json:"full_name"`
		Stars    int    `json:"stargazers_count"`
	} `json:"items"`
}

func (g *HTTPGitHubGateway) headers() map[string]string {
	h := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if g.token != "" {
		h["Authorization"] = "Bearer " + g.token
	}
	return h
}

// FindRepository returns the most-starred repository whose name matches app
func (g *HTTPGitHubGateway) FindRepository(ctx context.Context, app string) (string, error) {
	params := url.Values{}
	params.Set("q", app+" in:name")
	params.Set("sort", "stars")
	params.Set("per_page", "5")

	var result githubSearchResult
	if err := g.client.getJSON(ctx, g.apiURL+"/search/repositories?"+params.Encode(), g.headers(), &result); err != nil {
		return "", fmt.Errorf("GitHub repository search failed: %w", err)
	}
	if len(result.Items) == 0 {
		return "", nil
	}
	return result.Items[0].FullName, nil
}

// GetReleaseByTag fetches a release by tag; a missing tag yields nil, nil
func (g *HTTPGitHubGateway) GetReleaseByTag(ctx context.Context, repo, tag string) (*entities.ReleaseNotes, error) {
	var rel githubRelease
	endpoint := fmt.Sprintf("%s/repos/%s/releases/tags/%s", g.apiURL, repo, url.PathEscape(tag))
	if err := g.client.getJSON(ctx, endpoint, g.headers(), &rel); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &entities.ReleaseNotes{Repository: repo, Tag: rel.TagName, Body: rel.Body}, nil
}

// ListReleases returns the most recent releases of repo
func (g *HTTPGitHubGateway) ListReleases(ctx context.Context, repo string, perPage int) ([]githubRelease, error) {
	var releases []githubRelease
	endpoint := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", g.apiURL, repo, perPage)
	if err := g.client.getJSON(ctx, endpoint, g.headers(), &releases); err != nil {
		return nil, fmt.Errorf("GitHub release listing failed: %w", err)
	}
	return releases, nil
}

// FetchReleaseNotes locates app's repository and the release for version.
// It tries the common tag spellings, then scans the latest 30 releases.
// Nothing found yields nil, nil.
func (g *HTTPGitHubGateway) FetchReleaseNotes(ctx context.Context, app, version string) (*entities.ReleaseNotes, error) {
	repo, err := g.FindRepository(ctx, app)
	if err != nil {
		return nil, err
	}
	if repo == "" {
		g.logger.Info("no GitHub repository found", interfaces.F("app", app))
		return nil, nil
	}
	g.logger.Debug("found GitHub repository", interfaces.F("repo", repo))

	for _, tag := range []string{"v" + version, version, app + "-" + version, "release-" + version} {
		notes, err := g.GetReleaseByTag(ctx, repo, tag)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Debug("release tag lookup failed", interfaces.F("tag", tag), interfaces.F("error", err.Error()))
			continue
		}
		if notes != nil {
			g.logger.Debug("found release notes", interfaces.F("tag", tag))
			return notes, nil
		}
	}

	releases, err := g.ListReleases(ctx, repo, 30)
	if err != nil {
		return nil, err
	}
	for _, r := range releases {
		if strings.Contains(r.Name, version) || strings.Contains(r.TagName, version) {
			g.logger.Debug("found release notes via listing", interfaces.F("tag", r.TagName))
			return &entities.ReleaseNotes{Repository: repo, Tag: r.TagName, Body: r.Body}, nil
		}
	}

	g.logger.Info("no release notes found", interfaces.F("app", app), interfaces.F("version", version))
	return nil, nil
}
