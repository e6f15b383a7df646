package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/priyadesai-k/sharded-stream-poller/pkg/redis"
)

const redisKeyPrefix = "streampoller:state:"

// RedisStore persists poll state as a JSON value in Redis. No TTL is set;
// the state lives for the lifetime of the consumer.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore on top of an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load fetches and decodes the state, returning a fresh empty state when the
// key does not exist.
func (r *RedisStore) Load(ctx context.Context, consumerKey string) (*PollState, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+consumerKey)
	if err != nil {
		if redis.IsNilError(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("loading poll state for %s: %w", consumerKey, err)
	}
	st := New()
	if err := json.Unmarshal([]byte(raw), st); err != nil {
		return nil, fmt.Errorf("decoding poll state for %s: %w", consumerKey, err)
	}
	if st.Cursors == nil {
		st.Cursors = make(map[string]string)
	}
	return st, nil
}

// Save encodes and stores the state.
func (r *RedisStore) Save(ctx context.Context, consumerKey string, st *PollState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding poll state for %s: %w", consumerKey, err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+consumerKey, raw, 0); err != nil {
		return fmt.Errorf("saving poll state for %s: %w", consumerKey, err)
	}
	return nil
}
