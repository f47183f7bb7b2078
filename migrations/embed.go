// Package migrations holds the goose SQL migrations for the billing schema.
package migrations

import "embed"

// FS contains every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
