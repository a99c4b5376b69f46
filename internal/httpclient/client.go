// Package httpclient provides a resilient HTTP client used by the gateway
// to pull a client-referenced remote file into the shared uploads root
// (the /download-from-url endpoint, spec §6) before it can be enqueued as
// a job input like any locally-uploaded artifact.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// FetchConfig holds retry/backoff tuning for artifact fetches.
type FetchConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the backoff between retries.
	MaxDelay time.Duration
	// Timeout bounds a single attempt, including connection setup.
	Timeout time.Duration
	// RetryableStatusCodes are the remote statuses worth retrying; a
	// client-error status (4xx other than 429) is never retried since a
	// retry can't fix a bad URL.
	RetryableStatusCodes []int
}

// DefaultFetchConfig returns the gateway's default artifact-fetch tuning.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		MaxAttempts:          4,
		BaseDelay:            500 * time.Millisecond,
		MaxDelay:             30 * time.Second,
		Timeout:              60 * time.Second,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

// ArtifactFetcher retries a GET against a client-supplied URL with capped
// exponential backoff, the same way the worker's broker-pop loop retries a
// transient broker error (spec §7's `broker` error kind) rather than
// giving up on the first blip.
type ArtifactFetcher struct {
	cfg    FetchConfig
	client *http.Client
}

// NewArtifactFetcher builds a fetcher using cfg's timeout for each attempt.
func NewArtifactFetcher(cfg FetchConfig) *ArtifactFetcher {
	return &ArtifactFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch performs a GET against url, retrying transient failures and
// retryable status codes up to MaxAttempts times. The caller owns the
// returned response body and must close it.
func (f *ArtifactFetcher) Fetch(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: build request: %w", err)
		}
		req.Header.Set("User-Agent", "ifcjobs-gateway/1.0")

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			f.wait(ctx, attempt)
			continue
		}

		if f.retryable(resp.StatusCode) {
			// Drain and close so the connection can be reused by a retry.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			lastResp = resp
			lastErr = fmt.Errorf("remote returned retryable status %d", resp.StatusCode)
			f.wait(ctx, attempt)
			continue
		}

		return resp, nil
	}

	if lastErr != nil {
		return lastResp, fmt.Errorf("httpclient: fetch failed after %d attempts: %w", f.cfg.MaxAttempts, lastErr)
	}
	return lastResp, nil
}

func (f *ArtifactFetcher) retryable(statusCode int) bool {
	for _, code := range f.cfg.RetryableStatusCodes {
		if code == statusCode {
			return true
		}
	}
	return false
}

func (f *ArtifactFetcher) wait(ctx context.Context, attempt int) {
	select {
	case <-ctx.Done():
	case <-time.After(f.backoff(attempt)):
	}
}

func (f *ArtifactFetcher) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(f.cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > f.cfg.MaxDelay {
		delay = f.cfg.MaxDelay
	}
	return delay
}
