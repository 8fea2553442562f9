// Package migrations embeds the schema of the client's local SQLite database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
