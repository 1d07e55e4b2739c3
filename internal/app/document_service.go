package app

import (
	"fmt"

	"go.uber.org/zap"

	"ragbase/internal/config"
	"ragbase/internal/repository"
)

// ChunkView is one stored chunk as returned to API callers, without the raw
// embedding payload.
type ChunkView struct {
	ChunkIndex   int    `json:"chunk_index"`
	PageNum      *int   `json:"page_num,omitempty"`
	ParagraphNum *int   `json:"paragraph_num,omitempty"`
	Content      string `json:"content"`
}

// DocumentService serves document listing, inspection, and deletion.
type DocumentService struct {
	cfg    *config.Config
	repo   ChunkStore
	logger *zap.Logger
}

func NewDocumentService(cfg *config.Config, repo ChunkStore, logger *zap.Logger) *DocumentService {
	return &DocumentService{cfg: cfg, repo: repo, logger: logger}
}

// ListDocuments returns distinct documents newest first, optionally filtered
// by a name substring.
func (s *DocumentService) ListDocuments(skip, limit int, search string) ([]repository.DocumentSummary, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = s.cfg.Retrieval.DefaultPageSize
	}
	summaries, err := s.repo.DistinctDocuments(skip, limit, search)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []repository.DocumentSummary{}
	}
	return summaries, nil
}

// GetChunks returns a document's chunks in index order.
func (s *DocumentService) GetChunks(documentID string, skip, limit int) ([]ChunkView, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is empty", ErrInvalidInput)
	}
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = s.cfg.Retrieval.ChunksPageSize
	}
	chunks, err := s.repo.ListByDocument(documentID, skip, limit)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 && skip == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	views := make([]ChunkView, 0, len(chunks))
	for i := range chunks {
		views = append(views, ChunkView{
			ChunkIndex:   chunks[i].ChunkIndex,
			PageNum:      chunks[i].PageNum,
			ParagraphNum: chunks[i].ParagraphNum,
			Content:      chunks[i].Content,
		})
	}
	return views, nil
}

// DeleteDocument removes all chunks of one document and returns how many
// rows were deleted.
func (s *DocumentService) DeleteDocument(documentID string) (int64, error) {
	if documentID == "" {
		return 0, fmt.Errorf("%w: document id is empty", ErrInvalidInput)
	}
	deleted, err := s.repo.DeleteByDocumentID(documentID)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	s.logger.Info("document deleted", zap.String("document_id", documentID), zap.Int64("chunks", deleted))
	return deleted, nil
}

// ClearAll removes every stored chunk and returns the count.
func (s *DocumentService) ClearAll() (int64, error) {
	deleted, err := s.repo.DeleteAll()
	if err != nil {
		return 0, err
	}
	s.logger.Warn("chunk store cleared", zap.Int64("chunks", deleted))
	return deleted, nil
}

// Stats returns store-wide totals.
func (s *DocumentService) Stats() (repository.StoreStats, error) {
	return s.repo.Stats()
}
