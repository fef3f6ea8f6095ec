package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const scanBatch = 100

// Client is the key-value store used for sessions and sign-in flow state.
// It is safe for concurrent use; construct one per process and share it.
type Client struct {
	mu  sync.RWMutex
	rdb *redis.Client

	prefix  string
	ttl     time.Duration
	timeout time.Duration
	hooks   []redis.Hook
	log     zerolog.Logger
	metrics *Metrics
}

// New connects to the redis server at rawURL. A bare "host:port" is accepted
// and treated as redis://host:port. The connection is lazy; use Ping to
// check reachability.
func New(rawURL string, opts ...Option) (*Client, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "redis://" + rawURL
	}
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("[cache New] parse url: %w", err)
	}
	return NewFromClient(redis.NewClient(redisOpts), opts...), nil
}

// NewFromClient wraps an existing go-redis client. The Client takes
// ownership and closes it on Close.
func NewFromClient(rdb *redis.Client, opts ...Option) *Client {
	c := &Client{
		rdb:     rdb,
		timeout: defaultOpTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, h := range c.hooks {
		c.rdb.AddHook(h)
	}
	return c
}

func (c *Client) key(k string) string {
	return c.prefix + k
}

// run executes fn against the current pool under the per-call timeout and
// converts any failure into a StoreError. The read lock keeps SelectIndex
// from closing the pool underneath an in-flight call.
func (c *Client) run(ctx context.Context, op string, fn func(ctx context.Context, rdb *redis.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	defer c.mu.RUnlock()

	start := time.Now()
	err := fn(ctx, c.rdb)
	c.metrics.observe(op, start, err)
	if err != nil {
		c.log.Error().Err(err).Str("op", op).Msg("redis call failed")
		return &StoreError{Op: op, Cause: err}
	}
	c.log.Debug().Str("op", op).Dur("took", time.Since(start)).Msg("redis call")
	return nil
}

// SetVal stores value under key, replacing any previous value. Structured
// values are JSON encoded; strings and byte slices are stored verbatim.
func (c *Client) SetVal(ctx context.Context, key string, value any) error {
	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}
	return c.run(ctx, "set", func(ctx context.Context, rdb *redis.Client) error {
		return rdb.Set(ctx, c.key(key), encoded, c.ttl).Err()
	})
}

// SetValIfAbsent writes value only when key does not exist yet. It reports
// whether the write happened. A zero ttl falls back to the store TTL.
func (c *Client) SetValIfAbsent(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	encoded, err := encodeValue(value)
	if err != nil {
		return false, err
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	var written bool
	err = c.run(ctx, "setnx", func(ctx context.Context, rdb *redis.Client) error {
		var err error
		written, err = rdb.SetNX(ctx, c.key(key), encoded, ttl).Result()
		return err
	})
	return written, err
}

// GetVal returns the raw bytes last written under key. found is false when
// the key does not exist, which is not an error. Decoding is up to the caller.
func (c *Client) GetVal(ctx context.Context, key string) (value []byte, found bool, err error) {
	err = c.run(ctx, "get", func(ctx context.Context, rdb *redis.Client) error {
		b, err := rdb.Get(ctx, c.key(key)).Bytes()
		if errs.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = b, true
		return nil
	})
	return value, found, err
}

func (c *Client) HasKey(ctx context.Context, key string) (bool, error) {
	var n int64
	err := c.run(ctx, "exists", func(ctx context.Context, rdb *redis.Client) error {
		var err error
		n, err = rdb.Exists(ctx, c.key(key)).Result()
		return err
	})
	return n > 0, err
}

// SearchKeys returns every key in the client's namespace matching the glob
// pattern, with the namespace prefix removed. It walks the keyspace with
// SCAN so large databases are not blocked.
func (c *Client) SearchKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := c.run(ctx, "scan", func(ctx context.Context, rdb *redis.Client) error {
		iter := rdb.Scan(ctx, 0, c.key(pattern), scanBatch).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, strings.TrimPrefix(iter.Val(), c.prefix))
		}
		return iter.Err()
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// ClearKeys deletes keys and returns how many existed. Deleting an absent
// key is not an error.
func (c *Client) ClearKeys(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	var n int64
	err := c.run(ctx, "del", func(ctx context.Context, rdb *redis.Client) error {
		var err error
		n, err = rdb.Del(ctx, full...).Result()
		return err
	})
	return n, err
}

// Expire sets a time to live on an existing key. It reports false when the
// key does not exist.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var ok bool
	err := c.run(ctx, "expire", func(ctx context.Context, rdb *redis.Client) error {
		var err error
		ok, err = rdb.Expire(ctx, c.key(key), ttl).Result()
		return err
	})
	return ok, err
}

// HMSetVal sets field/value pairs on the hash at key, leaving other fields
// untouched. The store TTL, if any, is applied to the hash in the same
// transaction. An empty or odd-length kvp returns ErrInvalidParameter without
// contacting the backend.
func (c *Client) HMSetVal(ctx context.Context, key string, kvp ...any) (int64, error) {
	return c.hmSet(ctx, key, c.ttl, kvp)
}

// HMSetValTTL is HMSetVal with an explicit expiry for the hash. A zero ttl
// falls back to the store TTL.
func (c *Client) HMSetValTTL(ctx context.Context, key string, ttl time.Duration, kvp ...any) (int64, error) {
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.hmSet(ctx, key, ttl, kvp)
}

func (c *Client) hmSet(ctx context.Context, key string, ttl time.Duration, kvp []any) (int64, error) {
	if len(kvp) == 0 || len(kvp)%2 == 1 {
		return 0, errs.ErrInvalidParameter
	}
	pairs, err := encodePairs(kvp)
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.run(ctx, "hset", func(ctx context.Context, rdb *redis.Client) error {
		if ttl <= 0 {
			var err error
			n, err = rdb.HSet(ctx, c.key(key), pairs...).Result()
			return err
		}
		var set *redis.IntCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			set = pipe.HSet(ctx, c.key(key), pairs...)
			pipe.Expire(ctx, c.key(key), ttl)
			return nil
		})
		if err != nil {
			return err
		}
		n = set.Val()
		return nil
	})
	return n, err
}

// HMGetVal reads the named fields of the hash at key. Fields that are not
// set are omitted from the result.
func (c *Client) HMGetVal(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, errs.ErrInvalidParameter
	}
	values := make(map[string]string, len(fields))
	err := c.run(ctx, "hmget", func(ctx context.Context, rdb *redis.Client) error {
		res, err := rdb.HMGet(ctx, c.key(key), fields...).Result()
		if err != nil {
			return err
		}
		for i, v := range res {
			if s, ok := v.(string); ok {
				values[fields[i]] = s
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// HMTakeVal reads the named fields of the hash at key and deletes the hash
// in one transaction, so only one caller ever sees the fields. Fields that
// are not set are omitted from the result.
func (c *Client) HMTakeVal(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, errs.ErrInvalidParameter
	}
	values := make(map[string]string, len(fields))
	err := c.run(ctx, "hmtake", func(ctx context.Context, rdb *redis.Client) error {
		var get *redis.SliceCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			get = pipe.HMGet(ctx, c.key(key), fields...)
			pipe.Del(ctx, c.key(key))
			return nil
		})
		if err != nil {
			return err
		}
		for i, v := range get.Val() {
			if s, ok := v.(string); ok {
				values[fields[i]] = s
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// HMRemoveVal deletes fields from the hash at key and returns how many were
// present.
func (c *Client) HMRemoveVal(ctx context.Context, key string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, errs.ErrInvalidParameter
	}
	var n int64
	err := c.run(ctx, "hdel", func(ctx context.Context, rdb *redis.Client) error {
		var err error
		n, err = rdb.HDel(ctx, c.key(key), fields...).Result()
		return err
	})
	return n, err
}

func (c *Client) HSetFieldExists(ctx context.Context, key, field string) (bool, error) {
	var ok bool
	err := c.run(ctx, "hexists", func(ctx context.Context, rdb *redis.Client) error {
		var err error
		ok, err = rdb.HExists(ctx, c.key(key), field).Result()
		return err
	})
	return ok, err
}

// SelectIndex moves this client to another logical database. The pool is
// rebuilt on the new index so every pooled connection agrees; other clients
// pointed at the same server are unaffected.
func (c *Client) SelectIndex(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("index %d: %w", index, errs.ErrInvalidParameter)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	opts := *c.rdb.Options()
	opts.DB = index
	next := redis.NewClient(&opts)
	for _, h := range c.hooks {
		next.AddHook(h)
	}
	if err := next.Ping(ctx).Err(); err != nil {
		_ = next.Close()
		c.metrics.observe("select", start, err)
		c.log.Error().Err(err).Int("index", index).Msg("redis select failed")
		return &StoreError{Op: "select", Cause: err}
	}
	c.metrics.observe("select", start, nil)

	old := c.rdb
	c.rdb = next
	if err := old.Close(); err != nil {
		c.log.Warn().Err(err).Msg("closing previous redis pool")
	}
	c.log.Debug().Int("index", index).Msg("changed redis database index")
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.run(ctx, "ping", func(ctx context.Context, rdb *redis.Client) error {
		return rdb.Ping(ctx).Err()
	})
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rdb.Close()
}
