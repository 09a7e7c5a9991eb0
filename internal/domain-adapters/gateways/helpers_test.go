package gateways

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestClient returns an API client without rate limiting or retry sleeps
func newTestClient() *apiClient {
	c := NewAPIClient(HTTPOptions{Timeout: 5 * time.Second})
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

// newTestServer starts an httptest server closed at test cleanup
func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}
