// Package sentry implements the TrackerAPI port against the Sentry
// REST API.
//
// The client owns one shared connection pool per instance, decorates
// every request with a bearer token, retries transient failures with
// exponential backoff, and follows Link-header pagination to
// exhaustion. Callers receive either the complete record set for an
// endpoint or an error; no partial page is silently dropped.
package sentry
