package assets

import "embed"

// EmbeddedFiles holds the SQL migrations applied at startup.
//
//go:embed migrations/*.sql
var EmbeddedFiles embed.FS
