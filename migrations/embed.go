// Package migrations embeds the versioned schema, one directory per SQL dialect.
package migrations

import "embed"

//go:embed mysql/*.sql postgres/*.sql sqlite/*.sql
var FS embed.FS
