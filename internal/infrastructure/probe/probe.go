// Package probe answers whether a candidate website actually responds.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"

	"vcscout/internal/ports"
)

// Checker implements ports.ReachabilityChecker with a plain GET. Transport
// errors are retried with exponential backoff; HTTP status codes are not,
// since a 404 today is a 404 in five seconds too.
type Checker struct {
	client    *http.Client
	userAgent string
}

var _ ports.ReachabilityChecker = (*Checker)(nil)

// NewChecker builds a checker with an optional HTTP client.
func NewChecker(client *http.Client, userAgent string) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Checker{client: client, userAgent: userAgent}
}

// Check fetches the URL and returns the final status code after redirects.
func (c *Checker) Check(ctx context.Context, url string) (int, error) {
	var status int

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build probe request: %w", err))
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("probe %s: %w", url, err)
		}
		resp.Body.Close()

		status = resp.StatusCode
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		return 0, err
	}
	return status, nil
}
