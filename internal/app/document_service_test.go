package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragbase/internal/repository"
)

func newTestDocumentService(t *testing.T) (*DocumentService, *repository.ChunkRepository) {
	t.Helper()
	repo := newTestChunkRepo(t)
	return NewDocumentService(testConfig(), repo, zap.NewNop()), repo
}

func seedDocuments(t *testing.T, repo *repository.ChunkRepository) {
	t.Helper()
	for i, content := range []string{"第一块", "第二块", "第三块"} {
		storeChunk(t, repo, "doc-a", i, content, []float32{1, 0})
	}
	storeChunk(t, repo, "doc-b", 0, "另一份文档", []float32{0, 1})
}

func TestListDocuments(t *testing.T) {
	doc, repo := newTestDocumentService(t)
	seedDocuments(t, repo)

	docs, err := doc.ListDocuments(0, 0, "")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = doc.ListDocuments(0, 1, "")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestListDocumentsEmptyStore(t *testing.T) {
	doc, _ := newTestDocumentService(t)

	docs, err := doc.ListDocuments(0, 0, "")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestGetChunksOrderedAndNotFound(t *testing.T) {
	doc, repo := newTestDocumentService(t)
	seedDocuments(t, repo)

	chunks, err := doc.GetChunks("doc-a", 0, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}

	_, err = doc.GetChunks("doc-missing", 0, 0)
	require.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = doc.GetChunks("", 0, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteDocument(t *testing.T) {
	doc, repo := newTestDocumentService(t)
	seedDocuments(t, repo)

	deleted, err := doc.DeleteDocument("doc-a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = doc.DeleteDocument("doc-a")
	require.ErrorIs(t, err, ErrDocumentNotFound)

	stats, err := doc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalChunks)
	assert.Equal(t, int64(1), stats.TotalDocuments)
}

func TestClearAll(t *testing.T) {
	doc, repo := newTestDocumentService(t)
	seedDocuments(t, repo)

	deleted, err := doc.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	stats, err := doc.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
	assert.Zero(t, stats.TotalDocuments)
}
