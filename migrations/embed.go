// Package migrations embeds the postgres schema applied by
// "seva-server migrate up".
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
