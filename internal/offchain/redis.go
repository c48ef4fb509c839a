package offchain

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// noteTTL bounds how long a note survives in redis. Notes are only read by
// the oracle round of the block that wrote them.
const noteTTL = 24 * time.Hour

// RedisStore keeps notes in redis, letting several local processes share them.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis connects to addr and checks the server answers.
func DialRedis(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisStore(client), nil
}

// Set stores a note with the default TTL.
func (s *RedisStore) Set(ctx context.Context, key, value []byte) error {
	return s.client.Set(ctx, string(key), value, noteTTL).Err()
}

// Get reads a note.
func (s *RedisStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
