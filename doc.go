// Package morpheus provides incremental, error-tolerant analysis of Morpheus
// game scripts (.scr): parsing, symbol extraction, a workspace symbol index,
// and go-to-definition, find-references and rename.
//
// # Pipeline
//
// Every document update runs through three stages:
//
//  1. Parse: the document is parsed, or reparsed from its previous tree
//     after an incremental edit. Syntax errors produce ERROR and MISSING
//     nodes rather than failures.
//
//  2. Extract: embedded tree queries (queries/*.scm) pull threads, labels,
//     scoped variables, calls and gotos out of the tree. When parsing or
//     extraction fails, the last good tree is kept and a line-oriented
//     textual extractor answers instead.
//
//  3. Index: the extracted facts replace the document's previous
//     contributions to the workspace index, keyed by case-insensitive name.
//
// # Usage
//
// Create an Engine, load the grammar, and feed it documents:
//
//	e := morpheus.New()
//	if err := e.Init(ctx); err != nil { ... }
//
//	e.OpenDocument(uri, text, 1)
//	locs := e.ProvideDefinition(uri, protocol.Position{Line: 4, Character: 9})
//	edit, err := e.Rename(uri, pos, "counter2")
//
// [Engine.LoadDirectory] indexes every script under a directory so that
// cross-file lookups see files that are not open.
//
// # Navigation
//
//   - [Engine.ProvideDefinition]: goto label, scoped variable, script path,
//     call target, thread header, tried in that order.
//   - [Engine.ProvideReferences]: every identifier with the same name across
//     tracked documents.
//   - [Engine.PrepareRename] and [Engine.Rename]: validated, scope-aware
//     renames. Thread-local variables are renamed within their thread only.
//
// # Concurrency
//
// Engine methods may be called from several goroutines; calls are
// serialised. Directory loading parses files in parallel and commits them to
// the index one at a time.
package morpheus
