// Package redis provides the Redis client used by ResumeFlow services
// for caching and session state, with OpenTelemetry tracing and
// structured error handling layered over go-redis
// (github.com/redis/go-redis/v9).
//
// Create a client with [NewClient] and a [Config]:
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = redis.Secret(os.Getenv("REDIS_PASSWORD"))
//	client, err := redis.NewClient(ctx, *cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// For unit tests, inject a mock with [NewFromClient].
//
// Every operation creates an OpenTelemetry span with database semantic
// attributes (db.system, db.redis.database_index, db.statement).
// Statements are truncated before they reach telemetry so key contents
// do not leak into traces.
package redis

import (
	"fmt"
	"net/url"
	"time"
)

// maxStatementTruncateLen bounds the length of Redis statements recorded
// in trace spans.
const maxStatementTruncateLen = 100

const (
	// DefaultHost is the Redis hostname used in local and compose-based
	// ResumeFlow deployments.
	DefaultHost = "localhost"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultDB is the default Redis database index.
	DefaultDB = 0

	// DefaultPoolSize is the maximum number of pooled connections.
	DefaultPoolSize = 25

	// DefaultMinIdleConns is the minimum number of idle connections kept
	// in the pool.
	DefaultMinIdleConns = 5

	// DefaultMaxRetries is the number of times go-redis retries a command
	// before giving up.
	DefaultMaxRetries = 3

	// DefaultDialTimeout bounds connection establishment.
	DefaultDialTimeout = 10 * time.Second

	// DefaultReadTimeout bounds a single read from Redis.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds a single write to Redis.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultHealthTimeout applies to [Client.Health] when the caller's
	// context carries no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret holds a sensitive string such as the Redis password. Its
// String and GoString methods return a redacted placeholder so the value
// cannot leak through logging or formatted output; use [Secret.Value]
// to read it.
type Secret string

const redacted = "[REDACTED]"

// String returns "[REDACTED]".
func (s Secret) String() string { return redacted }

// GoString returns "[REDACTED]" for %#v formatting.
func (s Secret) GoString() string { return redacted }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler, redacting the secret in
// JSON and YAML output.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Config holds the Redis connection settings. When URI is set it takes
// precedence over the structured fields (Host, Port, DB, Password).
// The env tags document the environment variables the config loader
// binds each field to.
type Config struct {
	// URI is a Redis connection string such as
	// "redis://:password@host:6379/0". Both redis:// and rediss://
	// (TLS) schemes are supported.
	URI string `json:"uri,omitempty" env:"REDIS_URI"`

	// Host is the Redis server hostname or IP address.
	Host string `json:"host,omitempty" env:"REDIS_HOST"`

	// Port is the Redis server port.
	Port int `json:"port,omitempty" env:"REDIS_PORT"`

	// DB is the Redis database index.
	DB int `json:"db" env:"REDIS_DB"`

	// Password is the Redis password, redacted in all serialized output.
	Password Secret `json:"-" env:"REDIS_PASSWORD"`

	// PoolSize is the maximum number of pooled connections.
	PoolSize int `json:"pool_size,omitempty" env:"REDIS_POOL_SIZE"`

	// MinIdleConns is the minimum number of idle pooled connections.
	MinIdleConns int `json:"min_idle_conns,omitempty" env:"REDIS_MIN_IDLE_CONNS"`

	// MaxRetries is the per-command retry limit. Set to -1 to disable
	// retries.
	MaxRetries int `json:"max_retries,omitempty" env:"REDIS_MAX_RETRIES"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `json:"dial_timeout,omitempty" env:"REDIS_DIAL_TIMEOUT"`

	// ReadTimeout bounds a single read from Redis.
	ReadTimeout time.Duration `json:"read_timeout,omitempty" env:"REDIS_READ_TIMEOUT"`

	// WriteTimeout bounds a single write to Redis.
	WriteTimeout time.Duration `json:"write_timeout,omitempty" env:"REDIS_WRITE_TIMEOUT"`

	// TLSEnabled turns on TLS for structured configs. A rediss:// URI
	// enables TLS automatically.
	TLSEnabled bool `json:"tls_enabled,omitempty" env:"REDIS_TLS_ENABLED"`
}

// DefaultConfig returns a Config with defaults suitable for a local or
// compose-based ResumeFlow deployment. Override fields as needed before
// passing the config to [NewClient].
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate checks the configuration and fills in defaults for
// zero-valued pool and timeout fields. When URI is set, the structured
// host fields are skipped because the URI takes precedence.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("redis: config URI is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("redis: config pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.MinIdleConns < 0 {
		return fmt.Errorf("redis: config min_idle_conns must be >= 0, got %d", c.MinIdleConns)
	}
	if c.PoolSize < c.MinIdleConns {
		return fmt.Errorf("redis: config pool_size (%d) must be >= min_idle_conns (%d)", c.PoolSize, c.MinIdleConns)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("redis: config dial_timeout must not be negative, got %v", c.DialTimeout)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("redis: config read_timeout must not be negative, got %v", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("redis: config write_timeout must not be negative, got %v", c.WriteTimeout)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// truncateStatement caps a statement at maxStatementTruncateLen runes
// before it is attached to a trace span. Rune-aware so multi-byte
// characters are not split.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
