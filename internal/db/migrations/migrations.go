// Package migrations holds the embedded schema files applied by cmd/migrate.
// Files are applied in lexical order; each runs in its own transaction and is
// recorded in the schema_migrations table so reruns are no-ops.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
