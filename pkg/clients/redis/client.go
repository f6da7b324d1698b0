package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for this package.
const tracerName = "github.com/resumeflow/resumeflow-core/pkg/clients/redis"

// Cmdable is the subset of Redis commands the [Client] wraps. It is
// satisfied by [*redis.Client] and by mocks injected via [NewFromClient]
// for unit testing. The interface is intentionally narrow: it exposes
// only the operations ResumeFlow services use.
type Cmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Decr(ctx context.Context, key string) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ Cmdable = (*redis.Client)(nil)

// Client wraps a [Cmdable] (normally [*redis.Client]) with OpenTelemetry
// tracing and platform error classification. Failed operations surface
// as [*rferr.Error] values with cache error codes, so callers can treat
// Redis trouble uniformly with other degraded dependencies.
//
// A Client is safe for concurrent use. Create one per Redis instance
// and share it.
type Client struct {
	cmdable Cmdable
	config  *Config
	tracer  trace.Tracer
	dbIndex int
}

// NewClient validates cfg, dials Redis, and verifies connectivity with
// a ping. The caller must Close the returned client.
//
// Error codes returned:
//   - [rferr.CodeValidation]: invalid configuration
//   - [rferr.CodeUnavailableCache]: Redis is unreachable
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, rferr.Wrap(err, rferr.CodeValidation,
			"redis: invalid configuration")
	}

	var opts *redis.Options
	if cfg.URI != "" {
		var err error
		opts, err = redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, rferr.Wrap(err, rferr.CodeValidation,
				"redis: failed to parse connection URI")
		}
		// Pool settings come from the config even when the URI drives
		// the connection target.
		opts.PoolSize = cfg.PoolSize
		opts.MinIdleConns = cfg.MinIdleConns
		opts.MaxRetries = cfg.MaxRetries
		if cfg.DialTimeout > 0 {
			opts.DialTimeout = cfg.DialTimeout
		}
		if cfg.ReadTimeout > 0 {
			opts.ReadTimeout = cfg.ReadTimeout
		}
		if cfg.WriteTimeout > 0 {
			opts.WriteTimeout = cfg.WriteTimeout
		}
	} else {
		opts = &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:     cfg.Password.Value(),
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}
		if cfg.TLSEnabled {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, rferr.Wrap(err, rferr.CodeUnavailableCache,
			"redis: failed to connect to server")
	}

	dbIndex := cfg.DB
	if cfg.URI != "" {
		dbIndex = opts.DB
	}

	return &Client{
		cmdable: rdb,
		config:  &cfg,
		tracer:  otel.Tracer(tracerName),
		dbIndex: dbIndex,
	}, nil
}

// NewFromClient builds a Client around a pre-existing [Cmdable]. Meant
// for tests that inject a mock; cfg may be nil.
func NewFromClient(cmdable Cmdable, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		cmdable: cmdable,
		config:  cfg,
		tracer:  otel.Tracer(tracerName),
		dbIndex: cfg.DB,
	}
}

// Set stores a string value under key with an optional expiration.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	ctx, span := c.startSpan(ctx, "Set", fmt.Sprintf("SET %s", key))
	err := c.cmdable.Set(ctx, key, value, expiration).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: set failed")
	}
	return nil
}

// Get returns the string value of a key. A missing key surfaces as a
// wrapped [redis.Nil]; check with errors.Is.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	ctx, span := c.startSpan(ctx, "Get", fmt.Sprintf("GET %s", key))
	val, err := c.cmdable.Get(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return "", wrapError(err, "redis: get failed")
	}
	return val, nil
}

// Del removes keys and reports how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Del", fmt.Sprintf("DEL %v", keys))
	val, err := c.cmdable.Del(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: del failed")
	}
	return val, nil
}

// Exists reports how many of the given keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Exists", fmt.Sprintf("EXISTS %v", keys))
	val, err := c.cmdable.Exists(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: exists failed")
	}
	return val, nil
}

// Expire sets a TTL on a key, reporting whether the timeout was set.
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	ctx, span := c.startSpan(ctx, "Expire", fmt.Sprintf("EXPIRE %s %v", key, expiration))
	val, err := c.cmdable.Expire(ctx, key, expiration).Result()
	finishSpan(span, err)
	if err != nil {
		return false, wrapError(err, "redis: expire failed")
	}
	return val, nil
}

// TTL returns the remaining time to live of a key: -1 if the key has no
// expiration, -2 if it does not exist.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := c.startSpan(ctx, "TTL", fmt.Sprintf("TTL %s", key))
	val, err := c.cmdable.TTL(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: ttl failed")
	}
	return val, nil
}

// Incr increments the integer value of a key and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Incr", fmt.Sprintf("INCR %s", key))
	val, err := c.cmdable.Incr(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: incr failed")
	}
	return val, nil
}

// Decr decrements the integer value of a key and returns the new value.
func (c *Client) Decr(ctx context.Context, key string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Decr", fmt.Sprintf("DECR %s", key))
	val, err := c.cmdable.Decr(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: decr failed")
	}
	return val, nil
}

// HSet writes field-value pairs into a hash and returns the number of
// fields added.
func (c *Client) HSet(ctx context.Context, key string, values ...interface{}) (int64, error) {
	ctx, span := c.startSpan(ctx, "HSet", fmt.Sprintf("HSET %s", key))
	val, err := c.cmdable.HSet(ctx, key, values...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: hset failed")
	}
	return val, nil
}

// HGet returns the value of a hash field. A missing field surfaces as a
// wrapped [redis.Nil].
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	ctx, span := c.startSpan(ctx, "HGet", fmt.Sprintf("HGET %s %s", key, field))
	val, err := c.cmdable.HGet(ctx, key, field).Result()
	finishSpan(span, err)
	if err != nil {
		return "", wrapError(err, "redis: hget failed")
	}
	return val, nil
}

// HGetAll returns all fields and values in a hash, or an empty map if
// the key does not exist.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, span := c.startSpan(ctx, "HGetAll", fmt.Sprintf("HGETALL %s", key))
	val, err := c.cmdable.HGetAll(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "redis: hgetall failed")
	}
	return val, nil
}

// HDel removes hash fields and returns the number removed.
func (c *Client) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "HDel", fmt.Sprintf("HDEL %s %v", key, fields))
	val, err := c.cmdable.HDel(ctx, key, fields...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: hdel failed")
	}
	return val, nil
}

// LPush prepends values to a list and returns the new list length.
func (c *Client) LPush(ctx context.Context, key string, values ...interface{}) (int64, error) {
	ctx, span := c.startSpan(ctx, "LPush", fmt.Sprintf("LPUSH %s", key))
	val, err := c.cmdable.LPush(ctx, key, values...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: lpush failed")
	}
	return val, nil
}

// RPush appends values to a list and returns the new list length.
func (c *Client) RPush(ctx context.Context, key string, values ...interface{}) (int64, error) {
	ctx, span := c.startSpan(ctx, "RPush", fmt.Sprintf("RPUSH %s", key))
	val, err := c.cmdable.RPush(ctx, key, values...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: rpush failed")
	}
	return val, nil
}

// LRange returns list elements between the zero-based start and stop
// indexes; 0 and -1 select the whole list.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, span := c.startSpan(ctx, "LRange", fmt.Sprintf("LRANGE %s %d %d", key, start, stop))
	val, err := c.cmdable.LRange(ctx, key, start, stop).Result()
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "redis: lrange failed")
	}
	return val, nil
}

// LLen returns the length of a list.
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	ctx, span := c.startSpan(ctx, "LLen", fmt.Sprintf("LLEN %s", key))
	val, err := c.cmdable.LLen(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: llen failed")
	}
	return val, nil
}

// SAdd adds members to a set and returns the number newly added.
func (c *Client) SAdd(ctx context.Context, key string, members ...interface{}) (int64, error) {
	ctx, span := c.startSpan(ctx, "SAdd", fmt.Sprintf("SADD %s", key))
	val, err := c.cmdable.SAdd(ctx, key, members...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: sadd failed")
	}
	return val, nil
}

// SMembers returns all members of a set.
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	ctx, span := c.startSpan(ctx, "SMembers", fmt.Sprintf("SMEMBERS %s", key))
	val, err := c.cmdable.SMembers(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "redis: smembers failed")
	}
	return val, nil
}

// SIsMember reports whether member belongs to the set at key.
func (c *Client) SIsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	ctx, span := c.startSpan(ctx, "SIsMember", fmt.Sprintf("SISMEMBER %s", key))
	val, err := c.cmdable.SIsMember(ctx, key, member).Result()
	finishSpan(span, err)
	if err != nil {
		return false, wrapError(err, "redis: sismember failed")
	}
	return val, nil
}

// SRem removes members from a set and returns the number removed.
func (c *Client) SRem(ctx context.Context, key string, members ...interface{}) (int64, error) {
	ctx, span := c.startSpan(ctx, "SRem", fmt.Sprintf("SREM %s", key))
	val, err := c.cmdable.SRem(ctx, key, members...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: srem failed")
	}
	return val, nil
}

// Health pings Redis, applying [DefaultHealthTimeout] when the caller's
// context has no deadline. Returns [rferr.CodeUnavailableCache] on
// failure; intended for readiness probes.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "PING")

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := c.cmdable.Ping(ctx).Err()
	finishSpan(span, err)
	if err != nil {
		return rferr.Wrap(err, rferr.CodeUnavailableCache,
			"redis: health check failed")
	}
	return nil
}

// Close releases all connection resources. Safe to call multiple times.
func (c *Client) Close() error {
	return c.cmdable.Close()
}

// Client exposes the underlying [Cmdable] for operations the wrapper
// does not cover. Do not close it directly; use [Client.Close].
func (c *Client) Client() Cmdable {
	return c.cmdable
}

// startSpan opens a client span with database semantic attributes per
// https://opentelemetry.io/docs/specs/semconv/database/
func (c *Client) startSpan(ctx context.Context, operationName, statement string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "redis."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.Int("db.redis.database_index", c.dbIndex),
		attribute.String("db.statement", truncateStatement(statement)),
	)
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapError classifies a Redis failure as a platform error. Deadline
// expiry maps to [rferr.CodeTimeoutCache] so callers can use
// [rferr.IsRetryable]; everything else, including an abandoned context,
// maps to [rferr.CodeUnavailableCache].
func wrapError(err error, message string) *rferr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return rferr.Wrap(err, rferr.CodeTimeoutCache, message)
	}
	return rferr.Wrap(err, rferr.CodeUnavailableCache, message)
}
