package provider

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/circuitbreaker"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/retry"
)

// ErrProviderUnavailable is returned when the circuit to a provider host
// is open and requests are being shed.
var ErrProviderUnavailable = errors.New("provider temporarily unavailable")

// md5Hex is used for Mailchimp member addressing, which keys subscribers
// by the MD5 of the lowercased email. Not used for anything secret.
func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// statusError carries the HTTP status of a non-2xx provider response.
type statusError struct {
	method  string
	url     string
	code    int
	excerpt string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.method, e.url, e.code, e.excerpt)
}

// apiClient is the shared HTTP plumbing for adapters: JSON in, JSON out,
// bearer auth, bounded response reads. Transient failures (network errors
// and 5xx) are retried with backoff; repeated failures trip a per-host
// circuit so a degraded provider does not tie up request handlers.
type apiClient struct {
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

func newAPIClient() *apiClient {
	return &apiClient{
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

const (
	maxResponseBytes = 1 << 20
	maxAttempts      = 3
	retryBaseDelay   = 500 * time.Millisecond
)

// doJSON issues a request with an optional JSON body and decodes the JSON
// response into out (when out is non-nil). Non-2xx statuses are errors
// carrying the status and a truncated body excerpt. 4xx responses are not
// retried and do not count against the circuit.
func (c *apiClient) doJSON(ctx context.Context, method, rawURL, token string, body, out interface{}) error {
	host := hostOf(rawURL)
	if !c.breaker.Allow(host) {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, host)
	}

	err := retry.Do(ctx, maxAttempts, retryBaseDelay, func() error {
		err := c.doOnce(ctx, method, rawURL, token, body, out)
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			return retry.Permanent(err)
		}
		return err
	})

	var se *statusError
	clientErr := errors.As(err, &se) && se.code < 500
	switch {
	case err == nil:
		c.breaker.RecordSuccess(host)
	case clientErr:
		// The provider answered; only the request was bad.
	default:
		c.breaker.RecordFailure(host)
	}
	return err
}

func (c *apiClient) doOnce(ctx context.Context, method, url, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := string(raw)
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		return &statusError{method: method, url: url, code: resp.StatusCode, excerpt: excerpt}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return retry.Permanent(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
