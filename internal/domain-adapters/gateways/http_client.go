package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
)

const (
	// Max retries for transient errors
	maxRetries = 3
	// Initial backoff duration
	initialBackoff = 1 * time.Second
	// Max backoff duration
	maxBackoff = 32 * time.Second

	defaultUserAgent = "patchverify/1.0"
	// Cap on any JSON body we decode
	maxResponseBytes = 32 << 20
)

// HTTPOptions configures the shared API client used by every gateway
type HTTPOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	Logger            interfaces.Logger
}

// apiClient wraps http.Client with a shared rate limit and retry with exponential backoff
type apiClient struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    interfaces.Logger
	backoff   func(attempt int) time.Duration
}

// NewAPIClient creates the client shared by the registry, intelligence and GitHub gateways
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewAPIClient(opts HTTPOptions) *apiClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = int(math.Max(1, math.Ceil(opts.RequestsPerSecond)))
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &apiClient{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: ua,
		logger:    logger,
		backoff:   calculateBackoff,
	}
}

// statusError is returned for non-2xx responses the caller did not expect
type statusError struct {
	URL        string
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.StatusCode)
}

func (e *statusError) Unwrap() error {
	return entities.ErrExternalService
}

// isNotFound reports whether err is an HTTP 404 from the remote service
func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// checkRateLimit checks GitHub-style rate limit headers and returns error if exhausted
func (c *apiClient) checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	remainingInt, err := strconv.Atoi(remaining)
	if err != nil {
		return nil
	}

	if remainingInt == 0 && resp.StatusCode != http.StatusOK {
		resetTime := resp.Header.Get("X-RateLimit-Reset")
		if resetTime != "" {
			if resetUnix, err := strconv.ParseInt(resetTime, 10, 64); err == nil {
				resetAt := time.Unix(resetUnix, 0)
				return fmt.Errorf("%w: API rate limit exceeded (0 remaining), resets at %s",
					entities.ErrExternalService, resetAt.Format(time.RFC3339))
			}
		}
		return fmt.Errorf("%w: API rate limit exceeded (0 remaining)", entities.ErrExternalService)
	}

	if remainingInt <= 10 {
		c.logger.Warn("API rate limit low",
			interfaces.F("host", resp.Request.URL.Host),
			interfaces.F("remaining", remainingInt))
	}

	return nil
}

// isRetryableError checks if an HTTP status code is retryable
func isRetryableError(statusCode int) bool {
	switch statusCode {
	case http.StatusForbidden, // 403 - rate limit
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// calculateBackoff returns the backoff duration for a retry attempt
func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do executes an HTTP request with rate limiting and exponential backoff retry.
// The final response of a retryable status is returned to the caller unclosed.
func (c *apiClient) do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	req.Header.Set("User-Agent", c.userAgent)

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.backoff(attempt-1)); err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, bodyErr
				}
				req.Body = body
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err = c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Network errors are retryable
			if attempt < maxRetries {
				continue
			}
			return nil, fmt.Errorf("%w: %w", entities.ErrExternalService, err)
		}

		if rateLimitErr := c.checkRateLimit(resp); rateLimitErr != nil {
			//nolint:errcheck,gosec // G104: Best effort close on rate limit error
			resp.Body.Close()
			return nil, rateLimitErr
		}

		if !isRetryableError(resp.StatusCode) {
			return resp, nil
		}

		if attempt < maxRetries {
			//nolint:errcheck,gosec // G104: Best effort close before retry
			resp.Body.Close()
			c.logger.Debug("retrying request",
				interfaces.F("url", req.URL.String()),
				interfaces.F("status", resp.StatusCode),
				interfaces.F("attempt", attempt+1))
			continue
		}
	}

	return resp, nil
}

// getJSON performs a GET and decodes a 200 response into out.
// Any other status is returned as *statusError.
func (c *apiClient) getJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.doJSON(req, out)
}

func (c *apiClient) doJSON(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		//nolint:errcheck // Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &statusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to parse response from %s: %v", entities.ErrExternalService, req.URL.Host, err)
	}
	return nil
}

// exists issues a GET and reports whether the resource answered 200
func (c *apiClient) exists(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()
	//nolint:errcheck // Drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK, nil
}
