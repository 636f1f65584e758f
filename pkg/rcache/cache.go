package rcache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/redis/go-redis/v9"
	"github.com/vnykmshr/rcache-go/internal/store"
	"github.com/vnykmshr/rcache-go/internal/store/memory"
	redisstore "github.com/vnykmshr/rcache-go/internal/store/redis"
	"github.com/vnykmshr/rcache-go/pkg/metrics"
	"github.com/vnykmshr/rcache-go/pkg/serializer"
)

// Store is the key-value boundary the cache depends on
type Store = store.Store

// Scanner is implemented by stores that can list their keys
type Scanner = store.Scanner

// Cache ties a store to the wrapping machinery. It holds no per-key state;
// every wrapped call talks to the store directly.
type Cache struct {
	config     *Config
	store      store.Store
	stats      *Stats
	hooks      *Hooks
	logger     Logger
	serializer serializer.Serializer
	sf         singleflight.Group
	closeOnce  sync.Once

	// Metrics
	metricsExporter metrics.Exporter
	metricsLabels   metrics.Labels
	metricsStop     chan struct{}
	metricsWg       sync.WaitGroup
}

// New creates a new Cache instance with the given configuration
func New(config *Config) (*Cache, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	cacheStore := config.Store
	if cacheStore == nil {
		var err error
		switch config.StoreType {
		case StoreTypeMemory:
			cacheStore, err = createMemoryStore(config)
		case StoreTypeRedis:
			cacheStore, err = createRedisStore(config)
		default:
			return nil, fmt.Errorf("unsupported store type: %v", config.StoreType)
		}
		if err != nil {
			return nil, err
		}
	}

	cache := &Cache{
		config: config,
		store:  cacheStore,
		stats:  &Stats{},
		hooks:  config.Hooks,
		logger: config.Logger,
	}

	if cache.hooks == nil {
		cache.hooks = &Hooks{}
	}
	if cache.logger == nil {
		cache.logger = NewNoOpLogger()
	}

	if err := cache.initializeSerializer(); err != nil {
		return nil, fmt.Errorf("failed to initialize serializer: %w", err)
	}

	if err := cache.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return cache, nil
}

// createMemoryStore creates a memory-based store
func createMemoryStore(config *Config) (store.Store, error) {
	if config.CleanupInterval > 0 {
		return memory.NewWithCleanup(config.MaxEntries, config.CleanupInterval)
	}
	return memory.New(config.MaxEntries)
}

// createRedisStore creates a Redis-based store
func createRedisStore(config *Config) (store.Store, error) {
	if config.Redis == nil {
		return nil, fmt.Errorf("redis configuration is required when using StoreTypeRedis")
	}

	redisConfig := &redisstore.Config{
		Client:    config.Redis.Client,
		KeyPrefix: config.Redis.KeyPrefix,
	}

	if redisConfig.Client == nil {
		redisConfig.Options = &redis.Options{
			Addr:     config.Redis.Addr,
			Username: config.Redis.Username,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		}
	}

	s, err := redisstore.New(redisConfig)
	if err != nil {
		return nil, err
	}

	if config.Redis.Client == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	return s, nil
}

// Get decodes the value stored under key into target with the default
// serializer. It reports false when the key is absent.
func (c *Cache) Get(ctx context.Context, key string, target any) (bool, error) {
	return c.load(ctx, false, key, c.serializer, target, Args{})
}

// Set encodes value with the default serializer and stores it. ttl <= 0
// uses the configured default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	return c.save(ctx, false, key, c.serializer, value, ttl)
}

// Delete removes key from the store. A plain delete is not an invalidation:
// it is recorded as a delete operation and does not fire OnInvalidate hooks.
func (c *Cache) Delete(ctx context.Context, key string) error {
	start := time.Now()
	opCtx, cancel := c.operationContext(ctx, false)
	defer cancel()

	if err := c.store.Delete(opCtx, key); err != nil {
		c.recordCacheOperation(metrics.OperationDelete, metrics.ResultError, start)
		return c.fail(ctx, key, &BackendError{Op: OpDelete, Key: key, Err: err})
	}

	c.recordCacheOperation(metrics.OperationDelete, metrics.ResultSuccess, start)
	return nil
}

// Has reports whether key is present
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	_, found, err := c.store.Get(ctx, key)
	if err != nil {
		return false, &BackendError{Op: OpGet, Key: key, Err: err}
	}
	return found, nil
}

// Keys lists stored keys matching a glob pattern. The store must implement Scanner.
func (c *Cache) Keys(ctx context.Context, pattern string) ([]string, error) {
	scanner, ok := c.store.(store.Scanner)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list keys", c.store)
	}
	return scanner.Keys(ctx, pattern)
}

// Key builds the key a wrapped function with this identity would use for args
func (c *Cache) Key(identity string, args Args) string {
	return BuildHashedKey(identity, args, c.config.KeyHashing)
}

// Stats returns the current cache statistics
func (c *Cache) Stats() *Stats {
	return c.stats
}

// Store returns the underlying store
func (c *Cache) Store() Store {
	return c.store
}

// Close stops metrics reporting and closes the store
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.metricsStop != nil {
			close(c.metricsStop)
			c.metricsWg.Wait()
		}
		if c.metricsExporter != nil {
			c.metricsExporter.Close()
		}
		err = c.store.Close()
	})
	return err
}

// operationContext bounds store calls made for context-free functions
func (c *Cache) operationContext(ctx context.Context, bounded bool) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if bounded && c.config.OperationTimeout > 0 {
		return context.WithTimeout(ctx, c.config.OperationTimeout)
	}
	return ctx, func() {}
}

// load reads key and decodes it into target, which must be a non-nil pointer
func (c *Cache) load(ctx context.Context, bounded bool, key string, s serializer.Serializer, target any, args Args) (bool, error) {
	start := time.Now()
	opCtx, cancel := c.operationContext(ctx, bounded)
	defer cancel()

	payload, found, err := c.store.Get(opCtx, key)
	if err != nil {
		c.recordCacheOperation(metrics.OperationGet, metrics.ResultError, start)
		return false, c.fail(ctx, key, &BackendError{Op: OpGet, Key: key, Err: err})
	}

	if !found {
		c.stats.incMisses()
		c.recordCacheOperation(metrics.OperationGet, metrics.ResultMiss, start)
		c.hooks.invokeOnMiss(ctx, key, args)
		return false, nil
	}

	if err := s.Deserialize(payload, target); err != nil {
		c.recordCacheOperation(metrics.OperationDecode, metrics.ResultError, start)
		return false, c.fail(ctx, key, err)
	}

	c.stats.incHits()
	c.recordCacheOperation(metrics.OperationGet, metrics.ResultHit, start)
	if len(c.hooks.OnHit) > 0 {
		c.hooks.invokeOnHit(ctx, key, reflect.ValueOf(target).Elem().Interface(), args)
	}
	return true, nil
}

// save encodes value and writes it with ttl
func (c *Cache) save(ctx context.Context, bounded bool, key string, s serializer.Serializer, value any, ttl time.Duration) error {
	start := time.Now()

	payload, err := s.Serialize(value)
	if err != nil {
		c.recordCacheOperation(metrics.OperationEncode, metrics.ResultError, start)
		return c.fail(ctx, key, err)
	}

	opCtx, cancel := c.operationContext(ctx, bounded)
	defer cancel()

	if err := c.store.SetEx(opCtx, key, payload, ttl); err != nil {
		c.recordCacheOperation(metrics.OperationSet, metrics.ResultError, start)
		return c.fail(ctx, key, &BackendError{Op: OpSet, Key: key, Err: err})
	}

	c.stats.incWrites()
	c.recordCacheOperation(metrics.OperationSet, metrics.ResultSuccess, start)
	c.recordPayloadSize(len(payload))
	return nil
}

// remove deletes key after a mutation
func (c *Cache) remove(ctx context.Context, bounded bool, key string, args Args) error {
	start := time.Now()
	opCtx, cancel := c.operationContext(ctx, bounded)
	defer cancel()

	if err := c.store.Delete(opCtx, key); err != nil {
		c.recordCacheOperation(metrics.OperationInvalidate, metrics.ResultError, start)
		return c.fail(ctx, key, &BackendError{Op: OpDelete, Key: key, Err: err})
	}

	c.stats.incInvalidations()
	c.recordCacheOperation(metrics.OperationInvalidate, metrics.ResultSuccess, start)
	c.hooks.invokeOnInvalidate(ctx, key, args)
	return nil
}

// fail records a failed operation and returns err unchanged
func (c *Cache) fail(ctx context.Context, key string, err error) error {
	c.stats.incErrors()

	if errors.Is(err, ErrSerialization) {
		c.logger.Warn("Cache serialization failed", F("key", key), F("error", err))
	} else {
		c.logger.Error("Cache backend failed", F("key", key), F("error", err))
	}

	c.hooks.invokeOnError(ctx, key, err)
	return err
}

func (c *Cache) initializeSerializer() error {
	s := c.config.Serializer
	if s == nil {
		s = serializer.JSON{}
	}

	if c.config.Compression != nil {
		compressed, err := serializer.NewCompressed(s, c.config.Compression)
		if err != nil {
			return err
		}
		s = compressed
	}

	c.serializer = s
	return nil
}

// initializeMetrics sets up metrics collection if enabled
func (c *Cache) initializeMetrics() error {
	if c.config.Metrics == nil || !c.config.Metrics.Enabled || c.config.Metrics.Exporter == nil {
		c.metricsExporter = metrics.NewNoOpExporter()
		return nil
	}

	c.metricsExporter = c.config.Metrics.Exporter

	c.metricsLabels = make(metrics.Labels)
	if c.config.Metrics.CacheName != "" {
		c.metricsLabels[metrics.LabelCacheName] = c.config.Metrics.CacheName
	} else {
		c.metricsLabels[metrics.LabelCacheName] = "default"
	}

	for k, v := range c.config.Metrics.Labels {
		c.metricsLabels[k] = v
	}

	if c.config.Metrics.ReportingInterval > 0 {
		c.metricsStop = make(chan struct{})
		c.metricsWg.Add(1)
		go c.metricsReporter()
	}

	return nil
}

// metricsReporter periodically exports cache statistics
func (c *Cache) metricsReporter() {
	defer c.metricsWg.Done()

	ticker := time.NewTicker(c.config.Metrics.ReportingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.exportCurrentStats()
		case <-c.metricsStop:
			c.exportCurrentStats()
			return
		}
	}
}

func (c *Cache) exportCurrentStats() {
	if err := c.metricsExporter.ExportStats(c.stats, c.metricsLabels); err != nil {
		c.logger.Warn("Failed to export cache stats", F("error", err))
	}
}

func (c *Cache) recordCacheOperation(operation metrics.Operation, result metrics.Result, start time.Time) {
	_ = c.metricsExporter.RecordCacheOperation(operation, result, time.Since(start), c.metricsLabels) //nolint:errcheck // metrics are best effort
}

func (c *Cache) recordPayloadSize(size int) {
	_ = c.metricsExporter.RecordPayloadSize(size, c.metricsLabels) //nolint:errcheck // metrics are best effort
}
