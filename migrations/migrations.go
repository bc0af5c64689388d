// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

// FS holds every *.up.sql file of this directory.
//
//go:embed *.up.sql
var FS embed.FS
