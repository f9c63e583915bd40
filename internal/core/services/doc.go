// Package services implements the driving port interfaces.
// The sync engine orchestrates extraction passes over driven ports
// (tracker API, record emitter) and owns bookmark advancement.
//
// Services are pure Go with no external I/O of their own.
package services
