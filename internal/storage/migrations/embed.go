// Package migrations carries the schema for both archive backends as
// embedded SQL, applied in lexical filename order at startup.
package migrations

import "embed"

// PostgresFS holds the lock, slope-change and event table migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the point-history table migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
