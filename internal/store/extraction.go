package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// --- File queries ---

const fileCols = "id, uri, version, hash, line_count, exported_at"

type scanner interface{ Scan(...any) error }

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func scanFile(sc scanner) (*File, error) {
	f := &File{}
	if err := sc.Scan(&f.ID, &f.URI, &f.Version, &f.Hash, &f.LineCount, &f.ExportedAt); err != nil {
		return nil, err
	}
	return f, nil
}

func fileByURI(q querier, uri string) (*File, error) {
	f, err := scanFile(q.QueryRow("SELECT "+fileCols+" FROM files WHERE uri = ?", uri))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by uri: %w", err)
	}
	return f, nil
}

// FileByURI returns the stored file, or nil when there is none.
func (s *Store) FileByURI(uri string) (*File, error) {
	return fileByURI(s.db, uri)
}

// Files returns every stored file ordered by URI.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY uri")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Symbol queries ---

// SymbolCols is the column list for symbol queries.
const SymbolCols = `id, file_id, key, name, kind, scope, container, params, signature_hash,
	start_line, start_col, end_line, end_col, name_line, name_col`

func scanSymbol(sc scanner) (*Symbol, error) {
	sym := &Symbol{}
	var params string
	err := sc.Scan(
		&sym.ID, &sym.FileID, &sym.Key, &sym.Name, &sym.Kind, &sym.Scope, &sym.Container,
		&params, &sym.SignatureHash,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol, &sym.NameLine, &sym.NameCol,
	)
	if err != nil {
		return nil, err
	}
	sym.Params = unmarshalStrings(params)
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// SymbolsByKey returns the symbols stored under an index key, matched
// without regard to case.
func (s *Store) SymbolsByKey(key string) ([]*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE key = ? ORDER BY file_id, id", strings.ToLower(key))
	if err != nil {
		return nil, fmt.Errorf("symbols by key: %w", err)
	}
	return syms, nil
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("symbols by file: %w", err)
	}
	return syms, nil
}

// SymbolsByKind returns every symbol of a kind, ordered by key.
func (s *Store) SymbolsByKind(kind string) ([]*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE kind = ? ORDER BY key, file_id, id", kind)
	if err != nil {
		return nil, fmt.Errorf("symbols by kind: %w", err)
	}
	return syms, nil
}

// --- Reference queries ---

const referenceCols = `id, file_id, key, name, context, scope, container,
	is_definition, is_declaration, start_line, start_col, end_line, end_col`

// ReferencesByKey returns the references stored under an index key.
func (s *Store) ReferencesByKey(key string) ([]*Reference, error) {
	rows, err := s.db.Query("SELECT "+referenceCols+" FROM references_ WHERE key = ? ORDER BY file_id, start_line, start_col", strings.ToLower(key))
	if err != nil {
		return nil, fmt.Errorf("references by key: %w", err)
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r := &Reference{}
		if err := rows.Scan(
			&r.ID, &r.FileID, &r.Key, &r.Name, &r.Context, &r.Scope, &r.Container,
			&r.IsDefinition, &r.IsDeclaration, &r.StartLine, &r.StartCol, &r.EndLine, &r.EndCol,
		); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}
