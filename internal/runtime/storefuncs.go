package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/morpheus/internal/index"
	"github.com/jward/morpheus/internal/store"
	"github.com/jward/morpheus/internal/syntax"
)

// --- Workspace bridge functions ---

func makeNamesFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("names", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("names", 0, len(args))
		}
		return stringsToList(ws.Names())
	})
}

func makeDocumentsFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("documents", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("documents", 0, len(args))
		}
		return stringsToList(ws.IndexedDocuments())
	})
}

// symbols(uri) → [symbol]
func makeSymbolsFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols", 1, len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("symbols: %v", err)
		}
		return symbolsToList(ws.IndexedSymbols(uri))
	})
}

// definitions(name) → [symbol]
func makeDefinitionsFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("definitions", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("definitions", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("definitions: %v", err)
		}
		return symbolsToList(ws.FindAllDefinitions(name))
	})
}

// references(name, include_declaration=false) → [reference]
func makeReferencesFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("references", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("references: expected 1 or 2 arguments, got %d", len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("references: %v", err)
		}
		var include bool
		if len(args) == 2 {
			b, ok := args[1].(*object.Bool)
			if !ok {
				return object.Errorf("references: include_declaration must be a bool, got %s", args[1].Type())
			}
			include = b.Value()
		}
		results := []object.Object{}
		for _, r := range ws.FindReferences(name, include) {
			results = append(results, object.NewMap(map[string]object.Object{
				"uri":            object.NewString(r.URI),
				"name":           object.NewString(r.Name),
				"context":        object.NewString(string(r.Context)),
				"scope":          object.NewString(r.Scope),
				"container":      object.NewString(r.Container),
				"is_definition":  object.NewBool(r.IsDefinition),
				"is_declaration": object.NewBool(r.IsDeclaration),
				"range":          rangeToMap(r.Range),
			}))
		}
		return object.NewList(results)
	})
}

// stats(name) → {name, definitions, references, declarations, files}
func makeStatsFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("stats", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("stats", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("stats: %v", err)
		}
		st := ws.GetSymbolStats(name)
		return object.NewMap(map[string]object.Object{
			"name":         object.NewString(st.Name),
			"definitions":  object.NewInt(int64(st.Definitions)),
			"references":   object.NewInt(int64(st.References)),
			"declarations": object.NewInt(int64(st.Declarations)),
			"files":        stringsToList(st.Files),
		})
	})
}

// suggest(name, limit=5) → [string]
func makeSuggestFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("suggest", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("suggest: expected 1 or 2 arguments, got %d", len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("suggest: %v", err)
		}
		limit := int64(5)
		if len(args) == 2 {
			if limit, err = toInt64(args[1]); err != nil {
				return object.Errorf("suggest: %v", err)
			}
		}
		return stringsToList(ws.Suggest(name, int(limit)))
	})
}

// diagnostics(uri) → [{message, line, character}]
func makeDiagnosticsFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("diagnostics", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("diagnostics", 1, len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("diagnostics: %v", err)
		}
		results := []object.Object{}
		for _, d := range ws.Diagnostics(uri) {
			results = append(results, object.NewMap(map[string]object.Object{
				"message":   object.NewString(d.Message),
				"line":      object.NewInt(int64(d.Range.Start.Line)),
				"character": object.NewInt(int64(d.Range.Start.Character)),
			}))
		}
		return object.NewList(results)
	})
}

// --- Snapshot bridge functions ---

func makeStoreSymbolsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("db_symbols", 1, len(args))
		}
		key, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_symbols: %v", err)
		}
		syms, queryErr := s.SymbolsByKey(key)
		if queryErr != nil {
			return object.Errorf("db_symbols: %v", queryErr)
		}
		return storeSymbolsToList(syms)
	})
}

func makeStoreSymbolsByKindFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_symbols_by_kind", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("db_symbols_by_kind", 1, len(args))
		}
		kind, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_symbols_by_kind: %v", err)
		}
		syms, queryErr := s.SymbolsByKind(kind)
		if queryErr != nil {
			return object.Errorf("db_symbols_by_kind: %v", queryErr)
		}
		return storeSymbolsToList(syms)
	})
}

func makeStoreReferencesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_references", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("db_references", 1, len(args))
		}
		key, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_references: %v", err)
		}
		refs, queryErr := s.ReferencesByKey(key)
		if queryErr != nil {
			return object.Errorf("db_references: %v", queryErr)
		}
		results := []object.Object{}
		for _, r := range refs {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":            object.NewInt(r.ID),
				"file_id":       object.NewInt(r.FileID),
				"key":           object.NewString(r.Key),
				"context":       object.NewString(r.Context),
				"is_definition": object.NewBool(r.IsDefinition),
				"start_line":    object.NewInt(int64(r.StartLine)),
				"start_col":     object.NewInt(int64(r.StartCol)),
			}))
		}
		return object.NewList(results)
	})
}

func makeStoreFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("db_files", 0, len(args))
		}
		files, queryErr := s.Files()
		if queryErr != nil {
			return object.Errorf("db_files: %v", queryErr)
		}
		results := []object.Object{}
		for _, f := range files {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(f.ID),
				"uri":        object.NewString(f.URI),
				"version":    object.NewInt(int64(f.Version)),
				"line_count": object.NewInt(int64(f.LineCount)),
			}))
		}
		return object.NewList(results)
	})
}

// makeDBQueryFn creates a db_query bridge that executes read-only SQL.
// Returns a list of maps (column name → value).
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// --- Conversion helpers ---

func rangeToMap(r syntax.Range) object.Object {
	return object.NewMap(map[string]object.Object{
		"start_line": object.NewInt(int64(r.Start.Row)),
		"start_col":  object.NewInt(int64(r.Start.Column)),
		"end_line":   object.NewInt(int64(r.End.Row)),
		"end_col":    object.NewInt(int64(r.End.Column)),
	})
}

func symbolsToList(syms []index.Symbol) object.Object {
	results := []object.Object{}
	for _, sym := range syms {
		results = append(results, object.NewMap(map[string]object.Object{
			"key":       object.NewString(sym.Key()),
			"name":      object.NewString(sym.Name),
			"kind":      object.NewString(string(sym.Kind)),
			"scope":     object.NewString(sym.Scope),
			"container": object.NewString(sym.Container),
			"uri":       object.NewString(sym.URI),
			"params":    stringsToList(sym.Params),
			"range":     rangeToMap(sym.Range),
		}))
	}
	return object.NewList(results)
}

func storeSymbolsToList(syms []*store.Symbol) object.Object {
	results := []object.Object{}
	for _, sym := range syms {
		results = append(results, object.NewMap(map[string]object.Object{
			"id":         object.NewInt(sym.ID),
			"file_id":    object.NewInt(sym.FileID),
			"key":        object.NewString(sym.Key),
			"name":       object.NewString(sym.Name),
			"kind":       object.NewString(sym.Kind),
			"scope":      object.NewString(sym.Scope),
			"container":  object.NewString(sym.Container),
			"params":     stringsToList(sym.Params),
			"start_line": object.NewInt(int64(sym.StartLine)),
			"start_col":  object.NewInt(int64(sym.StartCol)),
		}))
	}
	return object.NewList(results)
}

func stringsToList(ss []string) object.Object {
	items := make([]object.Object, 0, len(ss))
	for _, s := range ss {
		items = append(items, object.NewString(s))
	}
	return object.NewList(items)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
