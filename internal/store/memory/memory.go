package memory

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vnykmshr/rcache-go/internal/entry"
	"github.com/vnykmshr/rcache-go/internal/store"
)

// DefaultCapacity bounds the memory store when no capacity is given
const DefaultCapacity = 100_000

// Store is an in-process store with per-entry TTL. It stands in for Redis
// in tests and local development.
type Store struct {
	cache *lru.Cache[string, *entry.Entry]

	// mu orders writes against the removal of expired entries
	mu sync.Mutex

	closeOnce   sync.Once
	stopCleanup chan struct{}
	now         func() time.Time
}

// New creates a memory store holding at most capacity entries
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	cache, err := lru.New[string, *entry.Entry](capacity)
	if err != nil {
		return nil, err
	}

	return &Store{
		cache:       cache,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}, nil
}

// NewWithCleanup creates a memory store that also purges expired entries
// every interval
func NewWithCleanup(capacity int, interval time.Duration) (*Store, error) {
	s, err := New(capacity)
	if err != nil {
		return nil, err
	}

	if interval > 0 {
		go s.cleanupLoop(interval)
	}

	return s, nil
}

// Get returns the payload stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	e, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}

	if e.ExpiredAt(s.now()) {
		s.expire(key, e)
		return nil, false, nil
	}

	return e.Payload, true, nil
}

// SetEx stores value under key for ttl
func (s *Store) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := make([]byte, len(value))
	copy(payload, value)

	s.mu.Lock()
	s.cache.Add(key, entry.New(payload, ttl))
	s.mu.Unlock()
	return nil
}

// expire removes key only while it still holds the stale entry, so a value
// written after the expiry check survives.
func (s *Store) expire(key string, stale *entry.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, found := s.cache.Peek(key); found && current == stale {
		s.cache.Remove(key)
		return true
	}
	return false
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.cache.Remove(key)
	return nil
}

// TTL returns the remaining time-to-live for key, or zero if it has none
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e, found := s.cache.Peek(key)
	if !found || !e.HasExpiry() {
		return 0, nil
	}

	remaining := e.ExpiresAt.Sub(s.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Keys returns the live keys matching pattern
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = "*"
	}

	now := s.now()
	keys := s.cache.Keys()
	matched := make([]string, 0, len(keys))
	for _, key := range keys {
		e, found := s.cache.Peek(key)
		if !found || e.ExpiredAt(now) {
			continue
		}
		ok, err := match(pattern, key)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, key)
		}
	}

	return matched, nil
}

// match is path.Match with '/' treated as an ordinary character, so '*'
// spans package paths the way a Redis MATCH pattern does
func match(pattern, key string) (bool, error) {
	return path.Match(strings.ReplaceAll(pattern, "/", "\x00"), strings.ReplaceAll(key, "/", "\x00"))
}

// Len returns the number of live entries
func (s *Store) Len() int {
	now := s.now()
	count := 0
	for _, key := range s.cache.Keys() {
		if e, found := s.cache.Peek(key); found && !e.ExpiredAt(now) {
			count++
		}
	}
	return count
}

// Cleanup removes expired entries and returns the number of entries removed
func (s *Store) Cleanup() int {
	now := s.now()
	removed := 0

	for _, key := range s.cache.Keys() {
		if e, found := s.cache.Peek(key); found && e.ExpiredAt(now) && s.expire(key, e) {
			removed++
		}
	}

	return removed
}

// Close stops the cleanup loop and drops all entries
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
		s.cache.Purge()
	})
	return nil
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// Ensure Store implements the required interfaces
var (
	_ store.Store   = (*Store)(nil)
	_ store.Scanner = (*Store)(nil)
)
