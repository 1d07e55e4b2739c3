package model

import (
	"encoding/json"
	"time"
)

// DocumentChunk is one retrievable unit of an ingested document.
// The embedding is stored as a JSON array of float32 for portability;
// nearest-neighbor scoring happens in the repository layer.
type DocumentChunk struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DocumentID   string    `gorm:"size:64;not null;uniqueIndex:idx_doc_chunk,priority:1;index:idx_doc_version,priority:1" json:"document_id"`
	Version      int       `gorm:"not null;default:1;index:idx_doc_version,priority:2" json:"version"`
	DocumentName string    `gorm:"size:256;not null" json:"document_name"`
	DocumentPath string    `gorm:"size:512;not null;index" json:"document_path"`
	PageNum      *int      `json:"page_num"`
	ParagraphNum *int      `json:"paragraph_num"`
	ChunkIndex   int       `gorm:"not null;uniqueIndex:idx_doc_chunk,priority:2" json:"chunk_index"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Embedding    string    `gorm:"type:mediumtext;not null" json:"-"` // JSON array of float32
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	Metadata     string    `gorm:"type:text" json:"-"` // JSON object, superset of the columns above
}

// EmbeddingVector returns the parsed embedding slice; nil on parse error.
func (c *DocumentChunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *DocumentChunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}

// SetMetadata stores arbitrary structured metadata as JSON.
func (c *DocumentChunk) SetMetadata(meta map[string]any) {
	if len(meta) == 0 {
		c.Metadata = ""
		return
	}
	b, _ := json.Marshal(meta)
	c.Metadata = string(b)
}

// MetadataMap returns the parsed metadata; nil when absent or invalid.
func (c *DocumentChunk) MetadataMap() map[string]any {
	if c.Metadata == "" {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal([]byte(c.Metadata), &m)
	return m
}
