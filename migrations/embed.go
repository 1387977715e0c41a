// Package migrations embeds the platform schema for tools/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
