package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"npimatch/internal/directory"
	"npimatch/pkg/platform/sentinel"
)

const (
	// Redis key prefix for cached directory searches
	searchKeyPrefix = "npimatch:search:"
)

// RedisStore is a Redis-backed Store shared across processes. Entries expire
// through Redis TTLs.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed store. The client lifecycle is
// managed by the caller.
func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required: %w", sentinel.ErrInvalidState)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(key Key) string {
	return searchKeyPrefix + key.String()
}

// Save writes the entry as JSON with SET ... EX.
func (s *RedisStore) Save(ctx context.Context, key Key, entry Entry) error {
	if entry.Records == nil {
		entry.Records = []directory.Record{}
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached search: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(key), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("write cached search: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Find returns ErrNotFound when the key is missing or expired.
func (s *RedisStore) Find(ctx context.Context, key Key) (Entry, error) {
	payload, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read cached search: %w: %w", sentinel.ErrUnavailable, err)
	}
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode cached search: %w", err)
	}
	return entry, nil
}
