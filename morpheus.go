// Package morpheus provides incremental, error-tolerant analysis of Morpheus
// game scripts (.scr): parsing, symbol extraction, a workspace symbol index,
// and go-to-definition, find-references and rename.
package morpheus
