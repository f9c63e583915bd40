// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - TrackerAPI: Fetches records from the remote issue-tracking API
//   - RecordEmitter: Emits schema, record and state messages to the sink
//   - StateStore: Loads and persists bookmark state between runs
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
