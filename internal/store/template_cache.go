// internal/store/template_cache.go
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/models"
)

// CachedTemplateStore caches GetByID reads in Redis and invalidates on every
// write. Cache failures fall through to the backing store.
type CachedTemplateStore struct {
	TemplateStore
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedTemplateStore(inner TemplateStore, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedTemplateStore {
	return &CachedTemplateStore{
		TemplateStore: inner,
		rdb:           rdb,
		ttl:           ttl,
		logger:        log.WithFields(map[string]interface{}{"component": "template-cache"}),
	}
}

func templateCacheKey(id string) string {
	return "template:" + id
}

func (s *CachedTemplateStore) GetByID(ctx context.Context, id string) (*models.Template, error) {
	cached, err := s.rdb.Get(ctx, templateCacheKey(id)).Result()
	if err == nil {
		var t models.Template
		if err := json.Unmarshal([]byte(cached), &t); err == nil {
			return &t, nil
		}
	} else if err != redis.Nil {
		s.logger.Warn("cache read failed", map[string]interface{}{"error": err.Error()})
	}

	t, err := s.TemplateStore.GetByID(ctx, id)
	if err != nil || t == nil {
		return t, err
	}

	if data, err := json.Marshal(t); err == nil {
		if err := s.rdb.Set(ctx, templateCacheKey(id), data, s.ttl).Err(); err != nil {
			s.logger.Warn("cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	return t, nil
}

func (s *CachedTemplateStore) Update(ctx context.Context, t *models.Template) error {
	if err := s.TemplateStore.Update(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, t.ID)
	return nil
}

func (s *CachedTemplateStore) Delete(ctx context.Context, id string) error {
	if err := s.TemplateStore.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedTemplateStore) invalidate(ctx context.Context, id string) {
	if err := s.rdb.Del(ctx, templateCacheKey(id)).Err(); err != nil {
		s.logger.Warn("cache invalidation failed", map[string]interface{}{
			"templateId": id,
			"error":      err.Error(),
		})
	}
}
