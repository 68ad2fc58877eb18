// Package redisstore caches catalog item payloads so repeated
// include_data listings don't hammer the item store.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func key(catalogName, itemID string) string {
	return "catalog:" + catalogName + ":" + itemID
}

// Get returns the cached item payload, best-effort: any redis or decode
// error reads as a miss.
func (s *Store) Get(ctx context.Context, catalogName, itemID string) (map[string]any, bool) {
	raw, err := s.rdb.Get(ctx, key(catalogName, itemID)).Bytes()
	if err != nil {
		return nil, false
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false
	}
	return data, true
}

func (s *Store) Set(ctx context.Context, catalogName, itemID string, data map[string]any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	_ = s.rdb.Set(ctx, key(catalogName, itemID), raw, s.ttl).Err()
}
