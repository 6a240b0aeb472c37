package attachment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chatcam/pkg/interfaces"
)

// keyPrefix namespaces attachment blobs in a shared Redis instance.
const keyPrefix = "chatcam:attachment:"

// RedisStore backs the attachment store with Redis so multiple relay
// instances can resolve each other's references. TTL is the store's own
// retention policy; blob lifetime is independent of any message.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects a store to Redis. A zero ttl keeps blobs until
// Redis evicts them.
func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Put stores a blob under a freshly minted reference id.
func (s *RedisStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}

	id := uuid.New().String()
	if err := s.client.Set(ctx, keyPrefix+id, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store attachment: %w", err)
	}
	return id, nil
}

// Get resolves a reference id to its payload.
func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch attachment: %w", err)
	}
	return data, nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ interfaces.AttachmentStore = (*RedisStore)(nil)
