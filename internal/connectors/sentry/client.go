package sentry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driven"
)

const (
	// MaxAttempts is the total number of tries per request, including
	// the first one.
	MaxAttempts = 5

	// retryBaseInterval is the initial backoff delay between attempts.
	retryBaseInterval = 100 * time.Millisecond

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 50 * 1024 * 1024
)

// Ensure Client implements the interface.
var _ driven.TrackerAPI = (*Client)(nil)

// Client is a connection-reusing Sentry API client with bounded
// automatic retry on transient failures.
type Client struct {
	config      *Config
	rateLimiter *RateLimiter

	mu   sync.Mutex
	http *http.Client
}

// NewClient creates a Sentry client from a validated config.
func NewClient(cfg *Config) *Client {
	return &Client{
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
	}
}

// httpClient lazily constructs the shared connection pool. The bearer
// token rides on an oauth2 static token transport, so every outbound
// request carries the Authorization header.
func (c *Client) httpClient(ctx context.Context) *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.http == nil {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: c.config.Token},
		)
		c.http = oauth2.NewClient(ctx, ts)
		c.http.Timeout = c.config.Timeout
	}
	return c.http
}

// endpoint builds an absolute API URL from a path relative to the
// configured base.
func (c *Client) endpoint(path string, params url.Values) string {
	u := c.config.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// orgPath builds an organization-scoped path.
func (c *Client) orgPath(resource string) string {
	return "organizations/" + url.PathEscape(c.config.Organization) + "/" + resource + "/"
}

// getPage issues one GET against an absolute URL, retrying transient
// failures, and decodes the result into a page.
func (c *Client) getPage(ctx context.Context, rawURL string, params url.Values) (*page, error) {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	var (
		body       []byte
		linkHeader string
		retryAfter time.Duration
	)

	operation := func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient(ctx).Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		c.rateLimiter.UpdateFromResponse(resp)

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			reqErr := &RequestError{
				StatusCode: resp.StatusCode,
				URL:        rawURL,
				Body:       string(data),
			}
			if !IsRetryableStatus(resp.StatusCode) {
				return backoff.Permanent(reqErr)
			}
			retryAfter = parseRetryAfter(resp.Header)
			return reqErr
		}

		body = data
		linkHeader = resp.Header.Get("Link")
		return nil
	}

	bo := &serverHintBackOff{
		base: backoff.WithContext(newExponentialBackOff(), ctx),
		hint: &retryAfter,
	}
	if err := backoff.Retry(operation, backoff.WithMaxRetries(bo, MaxAttempts-1)); err != nil {
		return nil, err
	}

	var records []domain.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &MalformedResponseError{URL: rawURL, Err: err}
	}

	return &page{records: records, next: ParseNextLink(linkHeader)}, nil
}

// fetchAll GETs a relative path and follows pagination to exhaustion.
func (c *Client) fetchAll(ctx context.Context, path string, params url.Values) ([]domain.Record, error) {
	first, err := c.getPage(ctx, c.endpoint(path, params), nil)
	if err != nil {
		return nil, err
	}
	return c.paginate(ctx, first)
}

// Projects lists the organization's projects.
func (c *Client) Projects(ctx context.Context) ([]domain.Record, error) {
	records, err := c.fetchAll(ctx, "projects/", nil)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return records, nil
}

// Issues lists a project's issues, filtered server-side by
// lastSeen >= since when since is non-zero.
func (c *Client) Issues(ctx context.Context, projectSlug string, since time.Time) ([]domain.Record, error) {
	path := "projects/" + url.PathEscape(c.config.Organization) + "/" + url.PathEscape(projectSlug) + "/issues/"

	params := url.Values{}
	if !since.IsZero() {
		params.Set("query", "lastSeen:>="+domain.FormatBookmarkTime(since))
	}

	records, err := c.fetchAll(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("list issues for %s: %w", projectSlug, err)
	}
	return records, nil
}

// Activities lists organization activity with dateCreated >= since.
// The endpoint has no server-side date filter; entries are filtered
// page by page, and traversal stops once a page contributes nothing.
func (c *Client) Activities(ctx context.Context, since time.Time) ([]domain.Record, error) {
	first, err := c.getPage(ctx, c.endpoint(c.orgPath("activity"), nil), nil)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	records, err := c.paginateFiltered(ctx, first, func(rec domain.Record) bool {
		created := rec.DateCreated()
		return !created.IsZero() && !created.Before(since)
	})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return records, nil
}

// Events lists a project's events within [since, until] when since is
// non-zero, unfiltered otherwise.
func (c *Client) Events(ctx context.Context, projectID string, since, until time.Time) ([]domain.Record, error) {
	params := url.Values{}
	params.Set("project", projectID)
	if !since.IsZero() {
		params.Set("start", domain.FormatBookmarkTime(since))
		params.Set("end", domain.FormatBookmarkTime(until))
		params.Set("utc", "true")
	}

	records, err := c.fetchAll(ctx, c.orgPath("events"), params)
	if err != nil {
		return nil, fmt.Errorf("list events for project %s: %w", projectID, err)
	}
	return records, nil
}

// Users lists the organization's members.
func (c *Client) Users(ctx context.Context) ([]domain.Record, error) {
	records, err := c.fetchAll(ctx, c.orgPath("users"), nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return records, nil
}

// Teams lists the organization's teams.
func (c *Client) Teams(ctx context.Context) ([]domain.Record, error) {
	records, err := c.fetchAll(ctx, c.orgPath("teams"), nil)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return records, nil
}

// newExponentialBackOff returns the retry schedule: a small base
// interval doubling per attempt.
func newExponentialBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseInterval
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	return bo
}

// serverHintBackOff prefers a server-supplied Retry-After delay over
// the computed exponential backoff for the next wait.
type serverHintBackOff struct {
	base backoff.BackOff
	hint *time.Duration
}

func (b *serverHintBackOff) NextBackOff() time.Duration {
	next := b.base.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	if *b.hint > 0 {
		next = *b.hint
		*b.hint = 0
	}
	return next
}

func (b *serverHintBackOff) Reset() {
	b.base.Reset()
}

// parseRetryAfter reads a Retry-After header in seconds form.
func parseRetryAfter(headers http.Header) time.Duration {
	raw := headers.Get(HeaderRetryAfter)
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
