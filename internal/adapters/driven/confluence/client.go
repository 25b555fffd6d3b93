package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
)

const (
	// DefaultTimeout bounds a single HTTP request when the configuration
	// does not set one.
	DefaultTimeout = 30 * time.Second

	// RetryDelay is the initial backoff before the first retry. It
	// doubles on each further attempt.
	RetryDelay = 500 * time.Millisecond

	// MaxRetryDelay caps the backoff, including waits the server asks
	// for through Retry-After.
	MaxRetryDelay = 15 * time.Second
)

// Client talks to the Confluence REST API on behalf of the engine. One
// instance is shared by all workers of a run; the limiter bounds their
// combined request rate.
type Client struct {
	http      *http.Client
	base      string
	space     string
	limiter   *rate.Limiter
	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// Ensure Client implements the interface.
var _ driven.Remote = (*Client)(nil)

// NewClient builds a REST client from the run configuration. The API
// root is derived from the configured base URL, which may name the
// site root, a context path or the API root itself.
func NewClient(cfg domain.Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q is not an absolute URL", domain.ErrInvalidConfig, cfg.BaseURL)
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(base, "/rest/api") {
		base += "/rest/api"
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	hc := oauth2.NewClient(context.Background(), source)
	hc.Timeout = timeout

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = domain.DefaultMaxRetries
	}

	return &Client{
		http:      hc,
		base:      base,
		space:     cfg.SpaceKey,
		limiter:   newLimiter(cfg.RequestsPerSecond),
		retries:   retries,
		baseDelay: RetryDelay,
		maxDelay:  MaxRetryDelay,
	}, nil
}

// newLimiter translates the configured rate into a token bucket.
// Negative disables throttling entirely.
func newLimiter(rps float64) *rate.Limiter {
	if rps < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if rps == 0 {
		rps = domain.DefaultRequestsPerSecond
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// do issues one API request, retrying transient failures with capped
// exponential backoff. The response body is returned on any 2xx status;
// any other status becomes an APIError.
func (c *Client) do(ctx context.Context, method, rawURL string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = encoded
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.retries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if attempt < c.retries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, fmt.Errorf("%w: read response: %v", domain.ErrTransient, readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		apiErr := newAPIError(resp, respBody)
		if errors.Is(apiErr, domain.ErrTransient) && attempt < c.retries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
		return nil, apiErr
	}
}

// retryDelay returns the wait before the given retry attempt. A
// parseable Retry-After header wins over the exponential schedule;
// both are capped at the maximum delay.
func (c *Client) retryDelay(attempt int, retryAfter string) time.Duration {
	if d := parseRetryAfter(retryAfter); d > 0 {
		if d > c.maxDelay {
			return c.maxDelay
		}
		return d
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return delay
}

// parseRetryAfter reads a Retry-After header given in seconds. The
// HTTP-date form is not handled and falls back to the backoff schedule.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// sleepContext waits for the delay or the context, whichever ends
// first.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
