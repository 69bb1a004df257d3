// Package db holds the embedded SQL schema migrations.
package db

import "embed"

// MigrationFS contains the numbered up/down migrations under migrations/.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
