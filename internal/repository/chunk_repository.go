package repository

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gorm.io/gorm"

	"ragbase/internal/model"
)

const scanBatchSize = 500

// ChunkWithDistance pairs a chunk with its L2 distance to a query vector.
type ChunkWithDistance struct {
	Chunk    model.DocumentChunk
	Distance float64
}

// DocumentSummary is one distinct document with its chunk count.
type DocumentSummary struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	DocumentPath string `json:"document_path"`
	CreatedAt    string `json:"created_at"`
	ChunkCount   int64  `json:"chunk_count"`
}

// StoreStats summarizes the whole chunk store.
type StoreStats struct {
	TotalDocuments  int64   `json:"total_documents"`
	TotalChunks     int64   `json:"total_chunks"`
	AvgChunksPerDoc float64 `json:"avg_chunks_per_doc"`
}

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) Create(chunk *model.DocumentChunk) error {
	if err := r.db.Create(chunk).Error; err != nil {
		return fmt.Errorf("create document chunk failed: %w", err)
	}
	return nil
}

// CreateBatch persists chunks inside a single transaction. On error nothing
// from the batch is committed.
func (r *ChunkRepository) CreateBatch(chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&chunks).Error
	})
	if err != nil {
		return fmt.Errorf("create chunk batch failed: %w", err)
	}
	return nil
}

// Exists reports whether a row for (documentID, chunkIndex) is already stored.
func (r *ChunkRepository) Exists(documentID string, chunkIndex int) (bool, error) {
	var count int64
	err := r.db.Model(&model.DocumentChunk{}).
		Where("document_id = ? AND chunk_index = ?", documentID, chunkIndex).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check chunk existence failed: %w", err)
	}
	return count > 0, nil
}

// NearestByEmbedding returns the limit chunks closest to queryVec by L2
// distance, ascending. MySQL has no vector index, so distances are computed
// here while scanning in bounded batches; rows with a mismatched
// dimensionality are skipped.
func (r *ChunkRepository) NearestByEmbedding(queryVec []float32, limit int) ([]ChunkWithDistance, error) {
	if limit <= 0 || len(queryVec) == 0 {
		return nil, nil
	}

	var candidates []ChunkWithDistance
	var batch []model.DocumentChunk
	result := r.db.Model(&model.DocumentChunk{}).FindInBatches(&batch, scanBatchSize, func(_ *gorm.DB, _ int) error {
		for i := range batch {
			vec := batch[i].EmbeddingVector()
			if len(vec) != len(queryVec) {
				continue
			}
			candidates = append(candidates, ChunkWithDistance{
				Chunk:    batch[i],
				Distance: l2Distance(queryVec, vec),
			})
		}
		// Keep the candidate set bounded while scanning.
		if len(candidates) > 4*limit {
			sortByDistance(candidates)
			candidates = candidates[:limit]
		}
		return nil
	})
	if result.Error != nil {
		return nil, fmt.Errorf("scan chunks for knn failed: %w", result.Error)
	}

	sortByDistance(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// SearchContent returns chunks whose content contains query,
// case-insensitive, in store order.
func (r *ChunkRepository) SearchContent(query string, limit int) ([]model.DocumentChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	pattern := "%" + strings.ToLower(query) + "%"
	var chunks []model.DocumentChunk
	err := r.db.Where("LOWER(content) LIKE ?", pattern).
		Limit(limit).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("search chunk content failed: %w", err)
	}
	return chunks, nil
}

// DistinctDocuments lists distinct documents with chunk counts, newest first,
// optionally filtered by a name substring.
func (r *ChunkRepository) DistinctDocuments(skip, limit int, search string) ([]DocumentSummary, error) {
	q := r.db.Model(&model.DocumentChunk{}).
		Select("document_id, MIN(document_name) AS document_name, MIN(document_path) AS document_path, MIN(created_at) AS created_at, COUNT(*) AS chunk_count").
		Group("document_id")
	if search != "" {
		q = q.Where("LOWER(document_name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	var summaries []DocumentSummary
	err := q.Order("created_at DESC").Offset(skip).Limit(limit).Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("list distinct documents failed: %w", err)
	}
	return summaries, nil
}

// PathIdentities returns the stored (document_path -> document_id) mapping
// used by sync to detect new and changed files.
func (r *ChunkRepository) PathIdentities() (map[string]string, error) {
	type pathID struct {
		DocumentPath string
		DocumentID   string
	}
	var rows []pathID
	err := r.db.Model(&model.DocumentChunk{}).
		Distinct("document_path", "document_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list path identities failed: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.DocumentPath] = row.DocumentID
	}
	return out, nil
}

// ListByDocument returns a document's chunks ordered by chunk index.
func (r *ChunkRepository) ListByDocument(documentID string, skip, limit int) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Offset(skip).
		Limit(limit).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID string) (int64, error) {
	res := r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chunks by document failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ChunkRepository) DeleteAll() (int64, error) {
	res := r.db.Where("1 = 1").Delete(&model.DocumentChunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete all chunks failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ChunkRepository) Stats() (StoreStats, error) {
	var stats StoreStats
	if err := r.db.Model(&model.DocumentChunk{}).Count(&stats.TotalChunks).Error; err != nil {
		return StoreStats{}, fmt.Errorf("count chunks failed: %w", err)
	}
	if err := r.db.Model(&model.DocumentChunk{}).Distinct("document_id").Count(&stats.TotalDocuments).Error; err != nil {
		return StoreStats{}, fmt.Errorf("count documents failed: %w", err)
	}
	if stats.TotalDocuments > 0 {
		avg := float64(stats.TotalChunks) / float64(stats.TotalDocuments)
		stats.AvgChunksPerDoc = math.Round(avg*100) / 100
	}
	return stats, nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func sortByDistance(cands []ChunkWithDistance) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Distance < cands[j].Distance
	})
}
