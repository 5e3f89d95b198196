// Package appfs embeds the migrations and static data shipped with the binaries.
package appfs

import "embed"

//go:embed migrations data
var FS embed.FS
