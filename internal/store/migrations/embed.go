// Package migrations holds the SQL schema for the app-owned mxt.db.
package migrations

import "embed"

// FS contains the numbered up/down migrations consumed by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
