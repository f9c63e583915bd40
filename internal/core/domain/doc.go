// Package domain defines the core business entities for sentry-tap.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Stream: A logical category of remote records with its own sync policy
//   - Record: An opaque record passed through to the sink
//   - Project: A remote project driving per-project sub-fetches
//   - State: The persisted bookmark mapping for incremental extraction
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
