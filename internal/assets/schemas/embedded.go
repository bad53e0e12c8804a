// Package schemasassets embeds the JSON schemas used to validate job files,
// so validation works from any working directory or installed binary.
package schemasassets

import _ "embed"

// JobManifestSchema is the job-manifest JSON schema.
//
//go:embed job-manifest.schema.json
var JobManifestSchema []byte
