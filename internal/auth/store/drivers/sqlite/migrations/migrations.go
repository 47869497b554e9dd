package migrations

import "embed"

// Migrations holds the golang-migrate files. Each file runs inside a
// transaction opened by the migrate driver.
//
//go:embed *.sql
var Migrations embed.FS
