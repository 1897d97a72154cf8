// Package migrations embeds the goose migration files applied on startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
