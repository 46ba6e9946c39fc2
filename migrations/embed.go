// Package migrations embeds the record store and ledger mirror schemas.
package migrations

import "embed"

// SQLite holds goose migrations for the local record store.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds migrations for the remote credit ledger mirror.
//
//go:embed postgres/*.sql
var Postgres embed.FS
