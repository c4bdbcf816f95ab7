package cache

import "time"

// RedisOption configures RedisCache.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

func WithRedisHost(host string) RedisOption {
	return func(c *RedisConfig) { c.Host = host }
}

func WithRedisPort(port int) RedisOption {
	return func(c *RedisConfig) { c.Port = port }
}

func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) { c.Password = password }
}

func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) { c.DB = db }
}

// WithRedisPool sets connection pool settings.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// WithRedisPrefix namespaces every key as "<prefix>:<key>".
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryConfig)

type MemoryConfig struct {
	MaxItems        int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// WithMemoryMaxItems bounds the number of entries; the least recently used is evicted.
func WithMemoryMaxItems(n int) MemoryOption {
	return func(c *MemoryConfig) { c.MaxItems = n }
}

// WithMemoryCleanup sets how often expired entries are swept. Zero disables the sweeper.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.CleanupInterval = interval }
}

func WithMemoryDefaultTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.DefaultTTL = ttl }
}
