package rcache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vnykmshr/rcache-go/pkg/compression"
	"github.com/vnykmshr/rcache-go/pkg/metrics"
	"github.com/vnykmshr/rcache-go/pkg/serializer"
)

// StoreType defines the type of backend store to use
type StoreType int

const (
	// StoreTypeMemory uses an in-process store (default)
	StoreTypeMemory StoreType = iota
	// StoreTypeRedis uses Redis as backend storage
	StoreTypeRedis
)

// DefaultKeyPrefix is prepended to every key written to Redis
const DefaultKeyPrefix = "rcache:"

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Client is a pre-configured Redis client. The cache never closes it.
	// If nil, a new client will be created using Addr, Username, Password, DB
	Client redis.UniversalClient

	// Addr is the Redis server address (host:port)
	// Only used if Client is nil
	Addr string

	// Username for Redis ACL authentication
	// Only used if Client is nil
	Username string

	// Password for Redis authentication
	// Only used if Client is nil
	Password string

	// DB is the Redis database number to use
	// Only used if Client is nil
	DB int

	// KeyPrefix is prepended to all cache keys
	// Default: "rcache:"
	KeyPrefix string
}

// MetricsConfig holds metrics exporter configuration
type MetricsConfig struct {
	// Exporter is the metrics exporter to use
	Exporter metrics.Exporter

	// Enabled determines whether metrics collection is enabled
	Enabled bool

	// CacheName is the name label applied to all metrics for this cache instance
	CacheName string

	// ReportingInterval determines how often to export stats gauges
	// Set to 0 to disable automatic reporting
	ReportingInterval time.Duration

	// Labels are additional labels applied to all metrics
	Labels metrics.Labels
}

// Config defines the configuration options for a Cache instance
type Config struct {
	// StoreType determines which backend store to use
	// Default: StoreTypeMemory
	StoreType StoreType

	// Store is a pre-built store. It takes precedence over StoreType and is
	// closed by Cache.Close.
	Store Store

	// MaxEntries bounds the memory store
	// Default: 0 (memory store default capacity)
	MaxEntries int

	// CleanupInterval sets how often the memory store drops expired entries
	// Default: 1 minute
	CleanupInterval time.Duration

	// DefaultTTL is used by wrapped functions without WithTTL
	// Default: 5 minutes
	DefaultTTL time.Duration

	// OperationTimeout bounds each store operation issued on behalf of a
	// function that takes no context.Context. Zero disables the bound.
	// Default: 2 seconds
	OperationTimeout time.Duration

	// KeyHashing selects readable or hashed keys
	// Default: KeyHashNone
	KeyHashing KeyHashing

	// Serializer is used by wrapped functions without WithSerializer
	// Default: serializer.JSON{}
	Serializer serializer.Serializer

	// Hooks defines event callbacks for cache operations
	Hooks *Hooks

	// Logger receives failures and lifecycle events
	// Default: NoOpLogger
	Logger Logger

	// Redis holds Redis-specific configuration
	// Only used when StoreType is StoreTypeRedis
	Redis *RedisConfig

	// Metrics holds metrics exporter configuration
	// If nil, no metrics will be exported
	Metrics *MetricsConfig

	// Compression wraps the default serializer with payload compression
	// If nil, compression will be disabled
	Compression *compression.Config
}

// NewDefaultConfig returns a Config with sensible defaults for memory storage
func NewDefaultConfig() *Config {
	return &Config{
		StoreType:        StoreTypeMemory,
		CleanupInterval:  time.Minute,
		DefaultTTL:       5 * time.Minute,
		OperationTimeout: 2 * time.Second,
		KeyHashing:       KeyHashNone,
		Serializer:       serializer.JSON{},
		Hooks:            &Hooks{},
		Logger:           NewNoOpLogger(),
	}
}

// NewRedisConfig returns a Config configured for Redis storage
func NewRedisConfig(addr string) *Config {
	return NewDefaultConfig().WithRedisAddr(addr)
}

// NewRedisConfigWithClient returns a Config configured for Redis with a pre-configured client
func NewRedisConfigWithClient(client redis.UniversalClient) *Config {
	return NewDefaultConfig().WithRedisClient(client)
}

// WithMaxEntries sets the maximum number of memory store entries
func (c *Config) WithMaxEntries(maxEntries int) *Config {
	c.MaxEntries = maxEntries
	return c
}

// WithDefaultTTL sets the default TTL for cached results
func (c *Config) WithDefaultTTL(ttl time.Duration) *Config {
	c.DefaultTTL = ttl
	return c
}

// WithCleanupInterval sets the cleanup interval for expired memory entries
func (c *Config) WithCleanupInterval(interval time.Duration) *Config {
	c.CleanupInterval = interval
	return c
}

// WithOperationTimeout sets the per-operation bound for context-free functions
func (c *Config) WithOperationTimeout(timeout time.Duration) *Config {
	c.OperationTimeout = timeout
	return c
}

// WithKeyHashing selects how the argument part of keys is written
func (c *Config) WithKeyHashing(hashing KeyHashing) *Config {
	c.KeyHashing = hashing
	return c
}

// WithSerializer sets the default serializer
func (c *Config) WithSerializer(s serializer.Serializer) *Config {
	c.Serializer = s
	return c
}

// WithHooks sets the event hooks for cache operations
func (c *Config) WithHooks(hooks *Hooks) *Config {
	c.Hooks = hooks
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger Logger) *Config {
	c.Logger = logger
	return c
}

// WithStore uses a pre-built store
func (c *Config) WithStore(s Store) *Config {
	c.Store = s
	return c
}

// WithRedis configures the cache to use Redis storage
func (c *Config) WithRedis(redisConfig *RedisConfig) *Config {
	c.StoreType = StoreTypeRedis
	c.Redis = redisConfig
	// Redis expires keys itself
	c.MaxEntries = 0
	c.CleanupInterval = 0
	return c
}

// WithRedisAddr configures the cache to use Redis with the given address
func (c *Config) WithRedisAddr(addr string) *Config {
	return c.WithRedis(&RedisConfig{
		Addr:      addr,
		KeyPrefix: DefaultKeyPrefix,
	})
}

// WithRedisClient configures the cache to use Redis with a pre-configured client
func (c *Config) WithRedisClient(client redis.UniversalClient) *Config {
	return c.WithRedis(&RedisConfig{
		Client:    client,
		KeyPrefix: DefaultKeyPrefix,
	})
}

// WithRedisAuth sets Redis authentication for the current Redis config
func (c *Config) WithRedisAuth(username, password string) *Config {
	if c.Redis == nil {
		c.Redis = &RedisConfig{KeyPrefix: DefaultKeyPrefix}
	}
	c.Redis.Username = username
	c.Redis.Password = password
	return c
}

// WithRedisDB sets the Redis database number
func (c *Config) WithRedisDB(db int) *Config {
	if c.Redis == nil {
		c.Redis = &RedisConfig{KeyPrefix: DefaultKeyPrefix}
	}
	c.Redis.DB = db
	return c
}

// WithRedisKeyPrefix sets the Redis key prefix
func (c *Config) WithRedisKeyPrefix(prefix string) *Config {
	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	c.Redis.KeyPrefix = prefix
	return c
}

// WithMetrics configures cache metrics export
func (c *Config) WithMetrics(metricsConfig *MetricsConfig) *Config {
	c.Metrics = metricsConfig
	return c
}

// WithMetricsExporter configures metrics with the given exporter
func (c *Config) WithMetricsExporter(exporter metrics.Exporter, cacheName string) *Config {
	c.Metrics = &MetricsConfig{
		Exporter:          exporter,
		Enabled:           true,
		CacheName:         cacheName,
		ReportingInterval: 30 * time.Second,
		Labels:            make(metrics.Labels),
	}
	return c
}

// WithMetricsLabels adds labels to metrics configuration
func (c *Config) WithMetricsLabels(labels metrics.Labels) *Config {
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{
			Labels:            make(metrics.Labels),
			ReportingInterval: 30 * time.Second,
		}
	}
	if c.Metrics.Labels == nil {
		c.Metrics.Labels = make(metrics.Labels)
	}
	for k, v := range labels {
		c.Metrics.Labels[k] = v
	}
	return c
}

// WithMetricsReportingInterval sets the metrics reporting interval
func (c *Config) WithMetricsReportingInterval(interval time.Duration) *Config {
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{
			Labels:            make(metrics.Labels),
			ReportingInterval: interval,
		}
	} else {
		c.Metrics.ReportingInterval = interval
	}
	return c
}

// WithCompression compresses payloads written with the default serializer
func (c *Config) WithCompression(compressionConfig *compression.Config) *Config {
	c.Compression = compressionConfig
	return c
}

// WithCompressionAlgorithm sets the compression algorithm
func (c *Config) WithCompressionAlgorithm(algorithm compression.CompressorType) *Config {
	if c.Compression == nil {
		c.Compression = compression.NewDefaultConfig()
	}
	c.Compression.Algorithm = algorithm
	return c
}

// WithCompressionMinSize sets the minimum size threshold for compression
func (c *Config) WithCompressionMinSize(minSize int) *Config {
	if c.Compression == nil {
		c.Compression = compression.NewDefaultConfig()
	}
	c.Compression.MinSize = minSize
	return c
}
