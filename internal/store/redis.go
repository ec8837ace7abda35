package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trade-watch/internal/session"
)

// Compile-time check to ensure RedisStore implements SessionStore
var _ SessionStore = (*RedisStore)(nil)

// RedisStore keeps the session blob under SessionKey in Redis, for setups
// where the watch session should survive the host or be shared between
// machines.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Restore(ctx context.Context) (*session.State, bool, error) {
	b, err := r.client.Get(ctx, SessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading session from redis: %w", err)
	}
	st := session.NewState()
	if err := json.Unmarshal(b, st); err != nil {
		return nil, false, fmt.Errorf("decoding session from redis: %w", err)
	}
	return st, true, nil
}

func (r *RedisStore) Save(ctx context.Context, st *session.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := r.client.Set(ctx, SessionKey, b, 0).Err(); err != nil {
		return fmt.Errorf("writing session to redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
