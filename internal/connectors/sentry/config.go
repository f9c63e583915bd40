package sentry

import (
	"strings"
	"time"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

const (
	// DefaultBaseURL is the hosted Sentry API root.
	DefaultBaseURL = "https://sentry.io/api/0/"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond throttles outbound calls proactively,
	// below Sentry's documented per-key limits.
	DefaultRequestsPerSecond = 10
)

// Config holds the connector's settings.
type Config struct {
	// Token is the bearer token (auth token or integration token).
	Token string

	// Organization is the organization slug all endpoints are
	// scoped to.
	Organization string

	// BaseURL is the API root. Defaults to hosted Sentry; point it
	// at a self-hosted instance or a test server otherwise.
	BaseURL string

	// Timeout bounds each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond caps the proactive request rate. Zero means
	// DefaultRequestsPerSecond.
	RequestsPerSecond float64
}

// Validate checks required fields and applies defaults in place.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return domain.ErrAuthRequired
	}
	if strings.TrimSpace(c.Organization) == "" {
		return domain.ErrInvalidInput
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	return nil
}
