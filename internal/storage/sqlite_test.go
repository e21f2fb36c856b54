package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfrag-mcp/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func newDocument(documentID, version string) *types.Document {
	return &types.Document{
		DocumentID: documentID,
		Version:    version,
		Filename:   documentID + ".pdf",
		Title:      "Title of " + documentID,
		PageCount:  3,
		Metadata:   map[string]string{"category": "report"},
	}
}

// seedDocument stores a document version with one chunk per content string
func seedDocument(t *testing.T, s *SQLiteStorage, documentID, version string, contents ...string) (*types.Document, []*types.Chunk) {
	t.Helper()
	ctx := context.Background()

	doc := newDocument(documentID, version)
	doc.ChunksCount = len(contents)
	require.NoError(t, s.CreateDocument(ctx, doc))

	chunks := make([]*types.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = &types.Chunk{
			DocumentID: doc.ID,
			Index:      i,
			Total:      len(contents),
			Content:    content,
			Metadata:   map[string]string{"chunk_index": fmt.Sprint(i)},
		}
	}
	require.NoError(t, s.InsertChunks(ctx, chunks))
	return doc, chunks
}

func TestNewSQLiteStorage_AppliesMigrations(t *testing.T) {
	s := setupTestDB(t)

	v, err := schemaVersion(context.Background(), s.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	// Reapplying is a no-op
	require.NoError(t, ApplyMigrations(context.Background(), s.db))
}

func TestReopenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfrag.db")

	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	seedDocument(t, s, "doc-1", "v1", "persisted text")
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()

	doc, err := s.GetDocument(context.Background(), "doc-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ChunksCount)
}

func TestRollbackMigration(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, s.db))
	v, err := schemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, RollbackMigration(ctx, s.db))
	v, err = schemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	assert.Error(t, RollbackMigration(ctx, s.db))
}

func TestCreateDocument(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	doc := newDocument("doc-1", "v1")
	require.NoError(t, s.CreateDocument(ctx, doc))
	assert.Greater(t, doc.ID, int64(0))
	assert.Equal(t, types.DocumentPDF, doc.DocumentType)
	assert.False(t, doc.IngestedAt.IsZero())

	err := s.CreateDocument(ctx, newDocument("doc-1", "v1"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = s.CreateDocument(ctx, &types.Document{DocumentID: "x", Version: "v1"})
	assert.Error(t, err, "filename is required")
}

func TestGetDocument(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	ingested := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	doc := newDocument("doc-1", "v1")
	doc.Author = "Jane"
	doc.IngestedAt = ingested
	require.NoError(t, s.CreateDocument(ctx, doc))

	got, err := s.GetDocument(ctx, "doc-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "Jane", got.Author)
	assert.Equal(t, "report", got.Metadata["category"])
	assert.True(t, ingested.Equal(got.IngestedAt))

	byID, err := s.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", byID.Version)

	_, err = s.GetDocument(ctx, "doc-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetDocumentByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListVersions(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, v := range []string{"v2", "v1", "v3"} {
		seedDocument(t, s, "doc-1", v, "content "+v)
	}
	seedDocument(t, s, "other", "v1", "unrelated")

	versions, err := s.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "v1", versions[0].Version)
	assert.Equal(t, "v2", versions[1].Version)
	assert.Equal(t, "v3", versions[2].Version)
	assert.Equal(t, "doc-1.pdf", versions[0].Filename)
	assert.Equal(t, 3, versions[0].PageCount)
	assert.Equal(t, 1, versions[0].ChunksCount)

	none, err := s.ListVersions(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestChunks(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	doc, chunks := seedDocument(t, s, "doc-1", "v1", "first", "second", "third")
	for _, c := range chunks {
		assert.Greater(t, c.ID, int64(0))
	}

	listed, err := s.ListChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, c := range listed {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 3, c.Total)
		assert.Equal(t, fmt.Sprint(i), c.Metadata["chunk_index"])
	}
	assert.Equal(t, "second", listed[1].Content)

	got, err := s.GetChunk(ctx, chunks[2].ID)
	require.NoError(t, err)
	assert.Equal(t, chunks[2].ContentHash, got.ContentHash)

	_, err = s.GetChunk(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)

	// (document, chunk_index) is unique
	dup := &types.Chunk{DocumentID: doc.ID, Index: 0, Total: 3, Content: "again"}
	assert.Error(t, s.InsertChunks(ctx, []*types.Chunk{dup}))
}

func TestDeleteDocument_Cascades(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	doc, chunks := seedDocument(t, s, "doc-1", "v1", "zebra crossing")
	require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
		ChunkID: chunks[0].ID, Vector: serializeVector([]float32{1, 0}), Dimension: 2, Provider: "local", Model: "m",
	}))

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	_, err := s.GetChunk(ctx, chunks[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEmbedding(ctx, chunks[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	results, err := s.SearchText(ctx, "zebra", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsertEmbedding(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	_, chunks := seedDocument(t, s, "doc-1", "v1", "text")

	emb := &Embedding{ChunkID: chunks[0].ID, Vector: serializeVector([]float32{1, 2}), Dimension: 2, Provider: "local", Model: "a"}
	require.NoError(t, s.UpsertEmbedding(ctx, emb))

	emb2 := &Embedding{ChunkID: chunks[0].ID, Vector: serializeVector([]float32{3, 4}), Dimension: 2, Provider: "local", Model: "b"}
	require.NoError(t, s.UpsertEmbedding(ctx, emb2))

	got, err := s.GetEmbedding(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Model)
	assert.Equal(t, []float32{3, 4}, DeserializeVector(got.Vector))
}

func TestTransaction(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	doc := newDocument("doc-tx", "v1")
	require.NoError(t, tx.CreateDocument(ctx, doc))
	got, err := tx.GetDocument(ctx, "doc-tx", "v1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	require.NoError(t, tx.Rollback())

	_, err = s.GetDocument(ctx, "doc-tx", "v1")
	assert.ErrorIs(t, err, ErrNotFound)

	tx, err = s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateDocument(ctx, newDocument("doc-tx", "v1")))
	require.NoError(t, tx.Commit())

	_, err = s.GetDocument(ctx, "doc-tx", "v1")
	assert.NoError(t, err)

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
}

func TestUpdateChunksCount(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	doc, _ := seedDocument(t, s, "doc-1", "v1", "a")

	require.NoError(t, s.UpdateChunksCount(ctx, doc.ID, 7))
	got, err := s.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.ChunksCount)

	assert.ErrorIs(t, s.UpdateChunksCount(ctx, 999, 1), ErrNotFound)
}

func TestGetStatus(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.DocumentsCount)
	assert.True(t, status.LastIngestedAt.IsZero())
	assert.True(t, status.Health.FTSIndexesBuilt)
	assert.False(t, status.Health.EmbeddingsAvailable)

	seedDocument(t, s, "doc-1", "v1", "a", "b")
	_, chunks := seedDocument(t, s, "doc-1", "v2", "c")
	seedDocument(t, s, "doc-2", "v1", "d")
	require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
		ChunkID: chunks[0].ID, Vector: serializeVector([]float32{1}), Dimension: 1, Provider: "local", Model: "m",
	}))

	status, err = s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.DocumentsCount)
	assert.Equal(t, 3, status.VersionsCount)
	assert.Equal(t, 4, status.ChunksCount)
	assert.Equal(t, 1, status.EmbeddingsCount)
	assert.True(t, status.Health.EmbeddingsAvailable)
	assert.False(t, status.LastIngestedAt.IsZero())
	assert.Equal(t, BuildMode, status.BuildMode)
}
