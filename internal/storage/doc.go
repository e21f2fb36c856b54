// Package storage provides SQLite-based persistence for ingested documents.
//
// # Database Schema
//
// Tables:
//   - documents: one row per (document_id, version) with extracted PDF metadata
//   - chunks: ordered chunk text of a document version
//   - chunks_fts: FTS5 external-content index over chunks.content
//   - embeddings: one vector per chunk, stored as little-endian float32
//
// Deleting a document version cascades to its chunks, their FTS rows and
// their embeddings.
//
// # Builds
//
// The default build uses modernc.org/sqlite (pure Go, FTS5 included) and
// scores vectors in Go. Building with the sqlite_vec tag switches to
// github.com/mattn/go-sqlite3 and ranks vectors in SQL.
//
// # Transactions
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.CreateDocument(ctx, doc); err != nil {
//	    return err
//	}
//	if err := tx.InsertChunks(ctx, chunks); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Migrations
//
// Schema changes are listed in AllMigrations and applied in semantic version
// order when the database is opened.
package storage
