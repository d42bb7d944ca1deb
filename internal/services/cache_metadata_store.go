package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/utils"
)

// CacheMetadataStore хранилище метаданных последнего пересчета (один блоб на мерчанта).
// Get возвращает nil без ошибки, если записи нет
type CacheMetadataStore interface {
	Get(ctx context.Context, tenant string) (*models.CacheMetadata, error)
	Put(ctx context.Context, tenant string, meta models.CacheMetadata) error
	Delete(ctx context.Context, tenant string) error
}

// CacheMetadataKey ключ блоба мерчанта в Redis
func CacheMetadataKey(tenant string) string {
	return "mrp:cache:" + tenant
}

// RedisCacheMetadataStore хранит метаданные в Redis как JSON
type RedisCacheMetadataStore struct {
	redis *utils.RedisClient
	ttl   time.Duration
}

// NewRedisCacheMetadataStore создает новый экземпляр RedisCacheMetadataStore.
// ttl <= 0 означает хранение без срока
func NewRedisCacheMetadataStore(redis *utils.RedisClient, ttl time.Duration) *RedisCacheMetadataStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCacheMetadataStore{redis: redis, ttl: ttl}
}

// Get читает блоб мерчанта, nil если ключа нет
func (s *RedisCacheMetadataStore) Get(ctx context.Context, tenant string) (*models.CacheMetadata, error) {
	var meta models.CacheMetadata
	if err := s.redis.GetJSON(ctx, CacheMetadataKey(tenant), &meta); err != nil {
		if errors.Is(err, utils.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &meta, nil
}

// Put сохраняет блоб мерчанта с TTL
func (s *RedisCacheMetadataStore) Put(ctx context.Context, tenant string, meta models.CacheMetadata) error {
	return s.redis.Set(ctx, CacheMetadataKey(tenant), meta, s.ttl)
}

// Delete удаляет блоб, следующий запрос пересчитает потребности
func (s *RedisCacheMetadataStore) Delete(ctx context.Context, tenant string) error {
	return s.redis.Delete(ctx, CacheMetadataKey(tenant))
}

// MemoryCacheMetadataStore метаданные в памяти процесса (без Redis)
type MemoryCacheMetadataStore struct {
	mu      sync.RWMutex
	entries map[string]models.CacheMetadata
}

// NewMemoryCacheMetadataStore создает новый экземпляр MemoryCacheMetadataStore
func NewMemoryCacheMetadataStore() *MemoryCacheMetadataStore {
	return &MemoryCacheMetadataStore{entries: make(map[string]models.CacheMetadata)}
}

func (s *MemoryCacheMetadataStore) Get(ctx context.Context, tenant string) (*models.CacheMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.entries[tenant]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (s *MemoryCacheMetadataStore) Put(ctx context.Context, tenant string, meta models.CacheMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tenant] = meta
	return nil
}

func (s *MemoryCacheMetadataStore) Delete(ctx context.Context, tenant string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tenant)
	return nil
}
