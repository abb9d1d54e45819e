// Package migrations embeds the mysql schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
