// Package schemas embeds the per-stream JSON schema documents emitted
// ahead of each stream's records.
package schemas

import "embed"

// FS contains all stream schema files embedded at compile time.
//
//go:embed *.json
var FS embed.FS
