// Package migrations embeds the goose SQL migration files applied at
// store open.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
