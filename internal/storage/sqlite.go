package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/pdfrag-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

const timeLayout = time.RFC3339Nano

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection keeps pragmas and :memory: databases consistent
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(raw sql.NullString) (map[string]string, error) {
	m := make(map[string]string)
	if !raw.Valid || raw.String == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}

// Document operations

const documentColumns = `
	id, document_id, version, filename, document_type, document_hash,
	title, author, subject, page_count, metadata, chunk_method,
	chunks_count, ingested_at`

func scanDocument(row scanner) (*types.Document, error) {
	var doc types.Document
	var docType, hash, title, author, subject, method sql.NullString
	var metadata sql.NullString
	var ingestedAt string

	err := row.Scan(
		&doc.ID, &doc.DocumentID, &doc.Version, &doc.Filename, &docType, &hash,
		&title, &author, &subject, &doc.PageCount, &metadata, &method,
		&doc.ChunksCount, &ingestedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.DocumentType = types.DocumentType(docType.String)
	doc.DocumentHash = hash.String
	doc.Title = title.String
	doc.Author = author.String
	doc.Subject = subject.String
	doc.ChunkMethod = method.String

	if doc.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	if doc.IngestedAt, err = time.Parse(timeLayout, ingestedAt); err != nil {
		return nil, fmt.Errorf("invalid ingested_at %q: %w", ingestedAt, err)
	}
	return &doc, nil
}

// createDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createDocumentWithQuerier(ctx context.Context, q querier, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}

	var exists int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE document_id = ? AND version = ?",
		doc.DocumentID, doc.Version).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: document %s version %s", ErrAlreadyExists, doc.DocumentID, doc.Version)
	}

	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	if doc.DocumentType == "" {
		doc.DocumentType = types.DocumentPDF
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (document_id, version, filename, document_type, document_hash,
		                       title, author, subject, page_count, metadata, chunk_method,
		                       chunks_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		doc.DocumentID, doc.Version, doc.Filename, string(doc.DocumentType), doc.DocumentHash,
		doc.Title, doc.Author, doc.Subject, doc.PageCount, metadata, doc.ChunkMethod,
		doc.ChunksCount, doc.IngestedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	doc.ID = id
	return nil
}

func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *types.Document) error {
	return s.createDocumentWithQuerier(ctx, s.querier(), doc)
}

func (s *SQLiteStorage) getDocumentWithQuerier(ctx context.Context, q querier, documentID, version string) (*types.Document, error) {
	query := `SELECT` + documentColumns + ` FROM documents WHERE document_id = ? AND version = ?`
	doc, err := scanDocument(q.QueryRowContext(ctx, query, documentID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, documentID, version string) (*types.Document, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), documentID, version)
}

func (s *SQLiteStorage) getDocumentByIDWithQuerier(ctx context.Context, q querier, id int64) (*types.Document, error) {
	query := `SELECT` + documentColumns + ` FROM documents WHERE id = ?`
	doc, err := scanDocument(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (s *SQLiteStorage) GetDocumentByID(ctx context.Context, id int64) (*types.Document, error) {
	return s.getDocumentByIDWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) listDocumentsWithQuerier(ctx context.Context, q querier) ([]*types.Document, error) {
	query := `SELECT` + documentColumns + ` FROM documents ORDER BY document_id, version`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*types.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	return s.listDocumentsWithQuerier(ctx, s.querier())
}

// listVersionsWithQuerier returns the versions of documentID sorted by version string
func (s *SQLiteStorage) listVersionsWithQuerier(ctx context.Context, q querier, documentID string) ([]types.VersionInfo, error) {
	query := `
		SELECT version, filename, title, page_count, chunks_count, ingested_at
		FROM documents
		WHERE document_id = ?
		ORDER BY version
	`
	rows, err := q.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	versions := make([]types.VersionInfo, 0)
	for rows.Next() {
		var v types.VersionInfo
		var title sql.NullString
		var ingestedAt string
		if err := rows.Scan(&v.Version, &v.Filename, &title, &v.PageCount, &v.ChunksCount, &ingestedAt); err != nil {
			return nil, err
		}
		v.Title = title.String
		if v.IngestedAt, err = time.Parse(timeLayout, ingestedAt); err != nil {
			return nil, fmt.Errorf("invalid ingested_at %q: %w", ingestedAt, err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLiteStorage) ListVersions(ctx context.Context, documentID string) ([]types.VersionInfo, error) {
	return s.listVersionsWithQuerier(ctx, s.querier(), documentID)
}

func (s *SQLiteStorage) updateChunksCountWithQuerier(ctx context.Context, q querier, id int64, count int) error {
	result, err := q.ExecContext(ctx, "UPDATE documents SET chunks_count = ? WHERE id = ?", count, id)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) UpdateChunksCount(ctx context.Context, id int64, count int) error {
	return s.updateChunksCountWithQuerier(ctx, s.querier(), id, count)
}

// deleteDocumentWithQuerier removes a document version; chunks and embeddings cascade
func (s *SQLiteStorage) deleteDocumentWithQuerier(ctx context.Context, q querier, id int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	return err
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	return s.deleteDocumentWithQuerier(ctx, s.querier(), id)
}

// Chunk operations

func scanChunk(row scanner) (*types.Chunk, error) {
	var chunk types.Chunk
	var hash []byte
	var tokenCount sql.NullInt64
	var metadata sql.NullString

	err := row.Scan(
		&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Total,
		&chunk.Content, &hash, &tokenCount, &metadata,
	)
	if err != nil {
		return nil, err
	}

	copy(chunk.ContentHash[:], hash)
	chunk.TokenCount = int(tokenCount.Int64)
	if chunk.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// insertChunksWithQuerier stores chunks and fills in their row IDs
func (s *SQLiteStorage) insertChunksWithQuerier(ctx context.Context, q querier, chunks []*types.Chunk) error {
	query := `
		INSERT INTO chunks (document_id, chunk_index, total_chunks, content, content_hash, token_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, chunk := range chunks {
		var zeroHash [32]byte
		if chunk.ContentHash == zeroHash {
			chunk.ComputeContentHash()
		}
		if err := chunk.Validate(); err != nil {
			return fmt.Errorf("invalid chunk %d: %w", chunk.Index, err)
		}

		metadata, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return err
		}

		result, err := q.ExecContext(ctx, query,
			chunk.DocumentID, chunk.Index, chunk.Total, chunk.Content,
			chunk.ContentHash[:], chunk.TokenCount, metadata)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		chunk.ID = id
	}
	return nil
}

func (s *SQLiteStorage) InsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	return s.insertChunksWithQuerier(ctx, s.querier(), chunks)
}

const chunkColumns = `id, document_id, chunk_index, total_chunks, content, content_hash, token_count, metadata`

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, chunkID int64) (*types.Chunk, error) {
	chunk, err := scanChunk(q.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, chunkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return chunk, err
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

func (s *SQLiteStorage) listChunksByDocumentWithQuerier(ctx context.Context, q querier, documentRowID int64) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE document_id = ? ORDER BY chunk_index`
	rows, err := q.QueryContext(ctx, query, documentRowID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByDocument(ctx context.Context, documentRowID int64) ([]*types.Chunk, error) {
	return s.listChunksByDocumentWithQuerier(ctx, s.querier(), documentRowID)
}

// Embedding operations

// upsertEmbeddingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	if embedding.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil {
			embedding.ID = id
		}
	}

	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding Embedding
	var createdAt string
	err := q.QueryRowContext(ctx, query, chunkID).Scan(
		&embedding.ID, &embedding.ChunkID, &embedding.Vector,
		&embedding.Dimension, &embedding.Provider, &embedding.Model,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	embedding.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &embedding, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), chunkID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), queryVector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.querier(), query, limit, filters)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{
		SchemaVersion: CurrentSchemaVersion,
		BuildMode:     BuildMode,
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(DISTINCT document_id) FROM documents", &status.DocumentsCount},
		{"SELECT COUNT(*) FROM documents", &status.VersionsCount},
		{"SELECT COUNT(*) FROM chunks", &status.ChunksCount},
		{"SELECT COUNT(*) FROM embeddings", &status.EmbeddingsCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var last sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT MAX(ingested_at) FROM documents").Scan(&last); err != nil {
		return nil, err
	}
	if last.Valid {
		status.LastIngestedAt, _ = time.Parse(timeLayout, last.String)
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var ftsName string
	ftsErr := q.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name = 'chunks_fts'").Scan(&ftsName)

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     ftsErr == nil,
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Transaction implementations route every call through the transaction

func (t *sqliteTx) CreateDocument(ctx context.Context, doc *types.Document) error {
	return t.storage.createDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) GetDocument(ctx context.Context, documentID, version string) (*types.Document, error) {
	return t.storage.getDocumentWithQuerier(ctx, t.querier(), documentID, version)
}

func (t *sqliteTx) GetDocumentByID(ctx context.Context, id int64) (*types.Document, error) {
	return t.storage.getDocumentByIDWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	return t.storage.listDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) ListVersions(ctx context.Context, documentID string) ([]types.VersionInfo, error) {
	return t.storage.listVersionsWithQuerier(ctx, t.querier(), documentID)
}

func (t *sqliteTx) UpdateChunksCount(ctx context.Context, id int64, count int) error {
	return t.storage.updateChunksCountWithQuerier(ctx, t.querier(), id, count)
}

func (t *sqliteTx) DeleteDocument(ctx context.Context, id int64) error {
	return t.storage.deleteDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) InsertChunks(ctx context.Context, chunks []*types.Chunk) error {
	return t.storage.insertChunksWithQuerier(ctx, t.querier(), chunks)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) ListChunksByDocument(ctx context.Context, documentRowID int64) ([]*types.Chunk, error) {
	return t.storage.listChunksByDocumentWithQuerier(ctx, t.querier(), documentRowID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), vector, limit, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, t.querier(), query, limit, filters)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}
