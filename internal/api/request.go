package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/t212-data/internal/metrics"
)

// APIError represents an error from the Trading 212 API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("t212 api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a backoff retry.
// Rate-limit responses are excluded: callers handle those with a fixed
// cooldown instead of exponential backoff.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsRateLimited returns true for HTTP 429 responses.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// NormalizePath converts the path forms the API hands back (absolute paths,
// api/v0-prefixed paths) into a path relative to the client base URL.
func NormalizePath(path string) string {
	cleaned := strings.TrimPrefix(path, "/")
	cleaned = strings.TrimPrefix(cleaned, "api/v0/")
	return cleaned
}

// doRequest performs a rate-limited GET against the given path. The label
// keys the rate-limit bucket; it usually equals the logical endpoint path.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, label string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, label); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var fullURL string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		fullURL = path
	} else {
		fullURL = strings.TrimSuffix(c.baseURL, "/") + "/" + NormalizePath(path)
	}
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		req.Header.Set("Authorization", c.creds.AuthorizationHeader())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(label, "error").Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	metrics.APIRequestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.APIRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	// Only successful responses refresh quota state.
	if c.limiter != nil {
		c.limiter.UpdateFromHeaders(label, resp.Header)
	}

	return body, nil
}

// Get performs a GET with exponential backoff on transient failures, both
// 5xx responses and transport-level errors, and returns the raw response
// body. Client errors, including 429, propagate immediately so callers can
// apply their own handling.
func (c *Client) Get(ctx context.Context, path string, query url.Values, label string) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, path, query, label)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable reports whether another attempt is worthwhile: a retryable
// status, or a transport-level failure such as a dropped connection or DNS
// error. Cancellations propagate immediately.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	return false
}

// getJSON performs a Get and unmarshals the body into result, returning the
// raw body for audit capture.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, label string, result any) ([]byte, error) {
	body, err := c.Get(ctx, path, query, label)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return body, nil
}
