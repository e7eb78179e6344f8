package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 100 * time.Millisecond

// RedisStore persists the quota state in Redis under a fixed key, for
// hosts without a writable filesystem.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed store. key defaults to
// "newsdesk:quota" when empty.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "newsdesk:quota"
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load() (*State, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get quota state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode quota state: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) Save(st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode quota state: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set quota state: %w", err)
	}
	return nil
}
