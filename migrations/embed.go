// Package migrations embeds the SQL schema migrations applied by store.Migrator.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
