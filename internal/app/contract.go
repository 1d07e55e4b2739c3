// Package app implements the ingestion and question-answering services on
// top of the parser, chunker, model clients, and chunk repository.
package app

import (
	"context"

	"ragbase/internal/ai"
	"ragbase/internal/model"
	"ragbase/internal/repository"
)

// Embedder produces a vector for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores a passage's relevance to a question. Higher is better.
type Reranker interface {
	Score(ctx context.Context, question, passage string) (float64, error)
}

// Generator produces the final answer from chat messages.
type Generator interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

// ChunkStore is the persistence surface the services depend on. The gorm
// repository is the production implementation.
type ChunkStore interface {
	CreateBatch(chunks []model.DocumentChunk) error
	Exists(documentID string, chunkIndex int) (bool, error)
	NearestByEmbedding(queryVec []float32, limit int) ([]repository.ChunkWithDistance, error)
	SearchContent(query string, limit int) ([]model.DocumentChunk, error)
	DistinctDocuments(skip, limit int, search string) ([]repository.DocumentSummary, error)
	PathIdentities() (map[string]string, error)
	ListByDocument(documentID string, skip, limit int) ([]model.DocumentChunk, error)
	DeleteByDocumentID(documentID string) (int64, error)
	DeleteAll() (int64, error)
	Stats() (repository.StoreStats, error)
}
