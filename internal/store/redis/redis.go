package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vnykmshr/rcache-go/internal/store"
)

// DefaultKeyPrefix namespaces every key written by the store
const DefaultKeyPrefix = "rcache:"

// scanBatch is the COUNT hint passed to SCAN
const scanBatch = 256

// Store implements a Redis-backed cache store
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	ownClient bool
}

// Config holds Redis store configuration
type Config struct {
	// Client is the Redis client to use. The store does not close a client
	// it was given.
	Client redis.UniversalClient

	// Options builds a client owned by the store when Client is nil
	Options *redis.Options

	// KeyPrefix is prepended to all cache keys to avoid conflicts
	KeyPrefix string
}

// New creates a new Redis store with the given configuration
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("redis store config is required")
	}

	client := config.Client
	ownClient := false
	if client == nil {
		if config.Options == nil {
			return nil, fmt.Errorf("redis client or options are required")
		}
		client = redis.NewClient(config.Options)
		ownClient = true
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		ownClient: ownClient,
	}, nil
}

// Get retrieves the payload stored under key. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, s.prefixedKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return payload, true, nil
}

// SetEx stores value with a time-to-live. ttl of zero stores without expiry.
func (s *Store) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if ttl > 0 && ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	if err := s.client.Set(ctx, s.prefixedKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefixedKey(key)).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// Keys returns the unprefixed keys matching pattern, using SCAN
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefixedKey(pattern), scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN %s: %w", pattern, err)
	}

	return keys, nil
}

// TTL returns the remaining time-to-live for key, or zero if it has none
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.prefixedKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis PTTL %s: %w", key, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Ping checks connectivity to the server
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Close closes the client if the store created it
func (s *Store) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

func (s *Store) prefixedKey(key string) string {
	return s.keyPrefix + key
}

// Ensure Store implements the required interfaces
var (
	_ store.Store   = (*Store)(nil)
	_ store.Scanner = (*Store)(nil)
)
