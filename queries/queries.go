// Package queries embeds the structural patterns that extract facts from
// Morpheus syntax trees. Grammar changes are absorbed here, by editing the
// .scm files, without touching the extraction code.
package queries

import "embed"

//go:embed *.scm
var FS embed.FS

// Names of the embedded query files.
const (
	Threads     = "threads.scm"
	Labels      = "labels.scm"
	Variables   = "variables.scm"
	Uses        = "uses.scm"
	Calls       = "calls.scm"
	Gotos       = "gotos.scm"
	Identifiers = "identifiers.scm"
)

// All lists every embedded query file.
var All = []string{Threads, Labels, Variables, Uses, Calls, Gotos, Identifiers}
