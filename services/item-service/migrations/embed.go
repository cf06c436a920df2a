package migrations

import "embed"

// FS holds the goose migrations of the item service
//
//go:embed *.sql
var FS embed.FS
