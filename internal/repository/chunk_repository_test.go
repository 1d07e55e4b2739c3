package repository

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ragbase/internal/model"
)

func newTestRepo(t *testing.T) *ChunkRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.DocumentChunk{}))
	return NewChunkRepository(db)
}

func testChunk(docID, name, path string, index int, content string, vec []float32) model.DocumentChunk {
	c := model.DocumentChunk{
		DocumentID:   docID,
		DocumentName: name,
		DocumentPath: path,
		ChunkIndex:   index,
		Content:      content,
	}
	c.SetEmbedding(vec)
	return c
}

func TestCreateBatchAndExists(t *testing.T) {
	repo := newTestRepo(t)

	chunks := []model.DocumentChunk{
		testChunk("doc-a", "a.txt", "/data/a.txt", 0, "第一块", []float32{1, 0}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 1, "第二块", []float32{0, 1}),
	}
	require.NoError(t, repo.CreateBatch(chunks))

	exists, err := repo.Exists("doc-a", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists("doc-a", 2)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.Exists("doc-b", 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateBatchEmptyIsNoop(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.CreateBatch(nil))
}

func TestNearestByEmbeddingOrdersAscending(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateBatch([]model.DocumentChunk{
		testChunk("doc-a", "a.txt", "/data/a.txt", 0, "完全匹配", []float32{1, 0}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 1, "相差较远", []float32{0, 1}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 2, "比较接近", []float32{0.9, 0.1}),
		// Wrong dimensionality, must be skipped rather than scored.
		testChunk("doc-b", "b.txt", "/data/b.txt", 0, "维度不符", []float32{1, 0, 0}),
	}))

	results, err := repo.NearestByEmbedding([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "完全匹配", results[0].Chunk.Content)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.Equal(t, "比较接近", results[1].Chunk.Content)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestNearestByEmbeddingEmptyStore(t *testing.T) {
	repo := newTestRepo(t)

	results, err := repo.NearestByEmbedding([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = repo.NearestByEmbedding(nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchContentCaseInsensitive(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateBatch([]model.DocumentChunk{
		testChunk("doc-a", "a.txt", "/data/a.txt", 0, "Kubernetes 部署指南", []float32{1, 0}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 1, "数据库调优", []float32{0, 1}),
	}))

	hits, err := repo.SearchContent("kubernetes", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].ChunkIndex)

	hits, err = repo.SearchContent("不存在的词", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDistinctDocumentsNewestFirst(t *testing.T) {
	repo := newTestRepo(t)

	older := testChunk("doc-a", "规范.txt", "/data/a.txt", 0, "内容A", []float32{1, 0})
	older.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testChunk("doc-b", "手册.txt", "/data/b.txt", 0, "内容B", []float32{0, 1})
	newer.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer2 := testChunk("doc-b", "手册.txt", "/data/b.txt", 1, "内容B2", []float32{0, 1})
	newer2.CreatedAt = time.Date(2026, 2, 1, 0, 0, 1, 0, time.UTC)
	require.NoError(t, repo.CreateBatch([]model.DocumentChunk{older, newer, newer2}))

	docs, err := repo.DistinctDocuments(0, 10, "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-b", docs[0].DocumentID)
	assert.Equal(t, int64(2), docs[0].ChunkCount)
	assert.Equal(t, "doc-a", docs[1].DocumentID)

	docs, err = repo.DistinctDocuments(0, 10, "手册")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-b", docs[0].DocumentID)
}

func TestPathIdentities(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateBatch([]model.DocumentChunk{
		testChunk("doc-a", "a.txt", "/data/a.txt", 0, "甲", []float32{1}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 1, "乙", []float32{1}),
		testChunk("doc-b", "b.txt", "/data/b.txt", 0, "丙", []float32{1}),
	}))

	identities, err := repo.PathIdentities()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"/data/a.txt": "doc-a",
		"/data/b.txt": "doc-b",
	}, identities)
}

func TestListByDocumentOrderedByIndex(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateBatch([]model.DocumentChunk{
		testChunk("doc-a", "a.txt", "/data/a.txt", 2, "三", []float32{1}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 0, "一", []float32{1}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 1, "二", []float32{1}),
	}))

	chunks, err := repo.ListByDocument("doc-a", 0, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestDeleteByDocumentID(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateBatch([]model.DocumentChunk{
		testChunk("doc-a", "a.txt", "/data/a.txt", 0, "甲", []float32{1}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 1, "乙", []float32{1}),
		testChunk("doc-b", "b.txt", "/data/b.txt", 0, "丙", []float32{1}),
	}))

	deleted, err := repo.DeleteByDocumentID("doc-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.DeleteByDocumentID("doc-a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalChunks)
}

func TestDeleteAllAndStats(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateBatch([]model.DocumentChunk{
		testChunk("doc-a", "a.txt", "/data/a.txt", 0, "甲", []float32{1}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 1, "乙", []float32{1}),
		testChunk("doc-a", "a.txt", "/data/a.txt", 2, "丙", []float32{1}),
		testChunk("doc-b", "b.txt", "/data/b.txt", 0, "丁", []float32{1}),
	}))

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalDocuments)
	assert.Equal(t, int64(4), stats.TotalChunks)
	assert.Equal(t, 2.0, stats.AvgChunksPerDoc)

	deleted, err := repo.DeleteAll()
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	stats, err = repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalChunks)
	assert.Equal(t, 0.0, stats.AvgChunksPerDoc)
}
