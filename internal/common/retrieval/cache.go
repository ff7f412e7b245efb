// internal/common/retrieval/cache.go
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/common/metrics"
	"prompt-pipeline/internal/models"
)

// CachedRetriever is a read-through Redis cache over another Retriever.
// Cache failures degrade to a direct search; they are never surfaced.
type CachedRetriever struct {
	inner  Retriever
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRetriever(inner Retriever, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedRetriever {
	return &CachedRetriever{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "retrieval-cache"}),
	}
}

func (c *CachedRetriever) Search(ctx context.Context, query string, documentIDs []string, topK int) ([]models.Chunk, error) {
	key := cacheKey(query, documentIDs, topK)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var chunks []models.Chunk
		if err := json.Unmarshal([]byte(cached), &chunks); err == nil {
			metrics.RetrievalCacheHits.WithLabelValues("hit").Inc()
			return chunks, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("cache read failed, falling through to search", map[string]interface{}{
			"error": err.Error(),
		})
	}
	metrics.RetrievalCacheHits.WithLabelValues("miss").Inc()

	chunks, err := c.inner.Search(ctx, query, documentIDs, topK)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(chunks); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return chunks, nil
}

// cacheKey hashes the full search input. Document IDs are NUL-delimited so
// concatenations of different ID sets cannot collide.
func cacheKey(query string, documentIDs []string, topK int) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	for _, id := range documentIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	h.Write([]byte(strconv.Itoa(topK)))
	return "retrieval:" + hex.EncodeToString(h.Sum(nil))
}
