// Package migrations embeds the goose SQL migrations for the escrow and
// vault schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
