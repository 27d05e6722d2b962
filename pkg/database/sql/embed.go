// Package sql embeds the canonical database schema so the service binary can
// bootstrap its own tables without external migration tooling.
package sql

import (
	"embed"
)

//go:embed schema/*.sql
var Content embed.FS
