// Package migrations embeds the schema migrations and seed files so the
// binaries carry their own schema.
package migrations

import "embed"

//go:embed sql/*.sql seeds/*.sql
var Files embed.FS

// Dirs as expected by the migrate manager.
const (
	SQLDir   = "sql"
	SeedsDir = "seeds"
)
