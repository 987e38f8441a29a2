// Package scripts embeds the workspace scripts bundled with the morpheus
// command. Run one with `morpheus script <name>.risor`.
package scripts

import "embed"

//go:embed *.risor
var FS embed.FS
