// Package cache provides a Redis read-through cache for embedding vectors.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const embeddingKeyPrefix = "ragbase:emb:"

// Embedder is the upstream embedding source the cache sits in front of.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache caches vectors by sha256 of the input text. Cache failures
// are logged and treated as misses; the upstream embedder stays authoritative.
type EmbeddingCache struct {
	inner  Embedder
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewEmbeddingCache(inner Embedder, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *EmbeddingCache {
	return &EmbeddingCache{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := embeddingKey(text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
		c.logger.Warn("discarding corrupt cached embedding", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(vec); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

func embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingKeyPrefix + hex.EncodeToString(sum[:])
}
