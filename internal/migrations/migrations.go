// Package migrations embeds the goose SQL migrations of the secure store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
