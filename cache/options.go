package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultOpTimeout = 2 * time.Second

type Option func(*Client)

// WithPrefix namespaces every key handled by the client.
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// WithTTL sets the store-wide expiry applied to every write that does not
// name its own. Zero means entries persist until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithOpTimeout bounds each backend call. Non-positive values fall back to
// the default so a stalled connection can never suspend a caller forever.
func WithOpTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			timeout = defaultOpTimeout
		}
		c.timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHooks installs go-redis hooks on the underlying connection pool. They
// survive SelectIndex, which rebuilds the pool.
func WithHooks(hooks ...redis.Hook) Option {
	return func(c *Client) {
		c.hooks = append(c.hooks, hooks...)
	}
}
