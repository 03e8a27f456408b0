// Package migrations holds the schema for each supported SQL dialect and
// applies it with golang-migrate.
package migrations

import "embed"

// Files holds one directory of numbered migrations per driver.
//
//go:embed sqlite/*.sql postgres/*.sql
var Files embed.FS
