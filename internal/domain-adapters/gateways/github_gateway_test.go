package gateways

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type githubFixture struct {
	mu        sync.Mutex
	tagsTried []string
	auth      string
}

func newGitHubServer(t *testing.T, f *githubFixture, tagBody map[string]string, listing string) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = r.Header.Get("Authorization")
		f.mu.Unlock()
		assert.Equal(t, "flask in:name", r.URL.Query().Get("q"))
		assert.Equal(t, "stars", r.URL.Query().Get("sort"))
		_, _ = w.Write([]byte(`{"total_count":1,"items":[{"full_name":"pallets/flask"},{"full_name":"other/flask"}]}`))
	})
	mux.HandleFunc("/repos/pallets/flask/releases/tags/", func(w http.ResponseWriter, r *http.Request) {
		tag := r.URL.Path[len("/repos/pallets/flask/releases/tags/"):]
		f.mu.Lock()
		f.tagsTried = append(f.tagsTried, tag)
		f.mu.Unlock()
		body, ok := tagBody[tag]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"` + tag + `","body":"` + body + `"}`))
	})
	mux.HandleFunc("/repos/pallets/flask/releases", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "30", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(listing))
	})
	return newTestServer(t, mux).URL
}

func TestGitHubGateway_TagOrder(t *testing.T) {
	f := &githubFixture{}
	url := newGitHubServer(t, f, map[string]string{"flask-3.0.1": "Fixed CVE-2023-30861"}, `[]`)

	g := NewHTTPGitHubGateway(newTestClient(), url, "secret", nil)
	notes, err := g.FetchReleaseNotes(context.Background(), "flask", "3.0.1")
	require.NoError(t, err)
	require.NotNil(t, notes)

	assert.Equal(t, "pallets/flask", notes.Repository)
	assert.Equal(t, "flask-3.0.1", notes.Tag)
	assert.Equal(t, "Fixed CVE-2023-30861", notes.Body)
	assert.Equal(t, []string{"v3.0.1", "3.0.1", "flask-3.0.1"}, f.tagsTried)
	assert.Equal(t, "Bearer secret", f.auth)
}

func TestGitHubGateway_ListingFallback(t *testing.T) {
	f := &githubFixture{}
	listing := `[{"tag_name":"2.9.0","name":"2.9.0","body":"old"},{"tag_name":"rel_3_0_1","name":"Flask 3.0.1","body":"found via name"}]`
	url := newGitHubServer(t, f, nil, listing)

	notes, err := NewHTTPGitHubGateway(newTestClient(), url, "", nil).FetchReleaseNotes(context.Background(), "flask", "3.0.1")
	require.NoError(t, err)
	require.NotNil(t, notes)
	assert.Equal(t, "rel_3_0_1", notes.Tag)
	assert.Equal(t, "found via name", notes.Body)
	assert.Len(t, f.tagsTried, 4)
	assert.Empty(t, f.auth, "no token, no Authorization header")
}

func TestGitHubGateway_NothingFound(t *testing.T) {
	f := &githubFixture{}
	url := newGitHubServer(t, f, nil, `[{"tag_name":"1.0","name":"1.0","body":"x"}]`)

	notes, err := NewHTTPGitHubGateway(newTestClient(), url, "", nil).FetchReleaseNotes(context.Background(), "flask", "3.0.1")
	require.NoError(t, err)
	assert.Nil(t, notes)
}

func TestGitHubGateway_NoRepository(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"total_count":0,"items":[]}`))
	}))

	notes, err := NewHTTPGitHubGateway(newTestClient(), srv.URL, "", nil).FetchReleaseNotes(context.Background(), "nope", "1.0")
	require.NoError(t, err)
	assert.Nil(t, notes)
}

func TestReleaseNotesSource_CollectPromises(t *testing.T) {
	f := &githubFixture{}
	url := newGitHubServer(t, f, map[string]string{"v3.0.1": "- Fixed CVE-2023-30861 session cookie leak\\n- Fix memory leak in stream handler"}, `[]`)

	src := NewReleaseNotesSource(NewHTTPGitHubGateway(newTestClient(), url, "", nil), nil)
	promises, err := src.CollectPromises(context.Background(), "flask", "3.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, promises)
	assert.Equal(t, "CVE-2023-30861", promises[0].ID)
}
