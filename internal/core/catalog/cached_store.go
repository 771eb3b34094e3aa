package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	entryKeyPrefix   = "catalog:entry:"
	keywordKeyPrefix = "catalog:kw:"
)

// CachedStore is a read-through Redis cache in front of another Store.
// Writes invalidate the touched entry and its keyword lists; keyword lists
// cached before an increment keep the stale score until the TTL expires,
// which only affects popularity tie-breaks.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *CachedStore) Get(ctx context.Context, id string) (*Entry, error) {
	key := entryKeyPrefix + id

	if raw, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err == nil {
			return &entry, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Debug("Redis get failed, falling through to store", "key", key, "error", err)
	}

	entry, err := s.inner.Get(ctx, id)
	if err != nil || entry == nil {
		return entry, err
	}

	s.cacheJSON(ctx, key, entry)
	return entry, nil
}

func (s *CachedStore) Set(ctx context.Context, entry *Entry) error {
	if err := s.inner.Set(ctx, entry); err != nil {
		return err
	}

	s.invalidate(ctx, entry.ProductID, entry.SearchTerms)
	return nil
}

func (s *CachedStore) IncrementScore(ctx context.Context, id string) (bool, error) {
	affected, err := s.inner.IncrementScore(ctx, id)
	if err != nil {
		return affected, err
	}

	if affected {
		s.invalidate(ctx, id, nil)
	}
	return affected, nil
}

func (s *CachedStore) QueryByKeyword(ctx context.Context, keyword string) ([]*Entry, error) {
	key := keywordKeyPrefix + keyword

	if raw, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var entries []*Entry
		if err := json.Unmarshal(raw, &entries); err == nil {
			return entries, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Debug("Redis get failed, falling through to store", "key", key, "error", err)
	}

	entries, err := s.inner.QueryByKeyword(ctx, keyword)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, key, entries)
	return entries, nil
}

func (s *CachedStore) All(ctx context.Context) ([]*Entry, error) {
	return s.inner.All(ctx)
}

func (s *CachedStore) cacheJSON(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Debug("Redis set failed", "key", key, "error", err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, id string, keywords []string) {
	keys := make([]string, 0, len(keywords)+1)
	keys = append(keys, entryKeyPrefix+id)
	for _, kw := range keywords {
		keys = append(keys, keywordKeyPrefix+kw)
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Debug("Redis invalidation failed", "id", id, "error", err)
	}
}
