// Package migrations holds the SQL schema applied by db.Migrate.
package migrations

import _ "embed"

//go:embed 001_init.sql
var Init string
