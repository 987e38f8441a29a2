package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CommitBatch replaces a file's rows with the batch, within one transaction.
// A file whose stored hash and version already match is left alone; the
// result reports whether anything was written.
func (s *Store) CommitBatch(batch *Batch) (bool, error) {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := fileByURI(tx, batch.File.URI)
	if err != nil {
		return false, fmt.Errorf("commit batch: %w", err)
	}
	if existing != nil {
		if existing.Hash == batch.File.Hash && existing.Version == batch.File.Version {
			return false, nil
		}
		if err := deleteFileTx(tx, existing.ID); err != nil {
			return false, fmt.Errorf("commit batch: %w", err)
		}
	}

	f := batch.File
	if f.ExportedAt.IsZero() {
		f.ExportedAt = time.Now()
	}
	fileID, err := insertFileTx(tx, &f)
	if err != nil {
		return false, fmt.Errorf("commit batch: file %q: %w", f.URI, err)
	}
	batch.File = f

	for i := range batch.Symbols {
		sym := &batch.Symbols[i]
		sym.FileID = fileID
		if _, err := insertSymbolTx(tx, sym); err != nil {
			return false, fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
	}
	for i := range batch.References {
		ref := &batch.References[i]
		ref.FileID = fileID
		if _, err := insertReferenceTx(tx, ref); err != nil {
			return false, fmt.Errorf("commit batch: reference %q: %w", ref.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit batch: %w", err)
	}
	log.Debugf("stored %s: %d symbols, %d references", f.URI, len(batch.Symbols), len(batch.References))
	return true, nil
}

func insertFileTx(tx *sql.Tx, f *File) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO files (uri, version, hash, line_count, exported_at) VALUES (?, ?, ?, ?, ?)",
		f.URI, f.Version, f.Hash, f.LineCount, f.ExportedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (file_id, key, name, kind, scope, container, params, signature_hash,
			start_line, start_col, end_line, end_col, name_line, name_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Key, sym.Name, sym.Kind, sym.Scope, sym.Container,
		marshalStrings(sym.Params), sym.SignatureHash,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.NameLine, sym.NameCol,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

func insertReferenceTx(tx *sql.Tx, ref *Reference) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO references_ (file_id, key, name, context, scope, container,
			is_definition, is_declaration, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.FileID, ref.Key, ref.Name, ref.Context, ref.Scope, ref.Container,
		ref.IsDefinition, ref.IsDeclaration,
		ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	ref.ID = id
	return id, nil
}
