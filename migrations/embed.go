// Package migrations embeds the Postgres schema migrations applied by
// `fabot migrate` and `fabot upgrade`.
package migrations

import "embed"

// FS holds the NNNNNN_name.{up,down}.sql files.
//
//go:embed *.sql
var FS embed.FS
