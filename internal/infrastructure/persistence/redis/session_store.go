package redis

import (
	"context"
	"errors"
	"time"

	"github.com/lingofin/lingofin-hub/pkg/kv"
)

// SessionStore implements kv.Store under the "session:" prefix. Each write
// refreshes the key's TTL.
type SessionStore struct {
	cache *Cache
	ttl   time.Duration
}

var _ kv.Store = (*SessionStore)(nil)

// NewSessionStore returns a store whose keys expire after ttl; zero uses
// TTLSessionData.
func NewSessionStore(cache *Cache, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = TTLSessionData
	}
	return &SessionStore{cache: cache, ttl: ttl}
}

// SessionKey namespaces key.
func SessionKey(key string) string {
	return PrefixSession + key
}

func (s *SessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.cache.Raw(ctx, SessionKey(key))
	if errors.Is(err, ErrCacheMiss) {
		return nil, kv.ErrKeyNotFound
	}
	return data, err
}

func (s *SessionStore) Set(ctx context.Context, key string, value []byte) error {
	return s.cache.PutRaw(ctx, SessionKey(key), value, s.ttl)
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, SessionKey(key))
}
