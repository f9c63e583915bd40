// Package connectors holds API clients for remote trackers. Each
// connector implements the TrackerAPI port for one provider and owns
// its own pagination, throttling and retry behaviour.
package connectors
