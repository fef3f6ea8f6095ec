package config

import "time"

type Cache struct {
	vars envVars
}

var _ CacheConfig = Cache{}

// GetRedisURL accepts either a full redis:// URL or a bare host:port.
func (c Cache) GetRedisURL() string {
	return c.vars.RedisURL
}

// GetRedisIndex returns the logical database to select after connecting,
// or -1 to keep the one named by the URL.
func (c Cache) GetRedisIndex() int {
	return c.vars.RedisIndex
}

func (c Cache) GetRedisKeyPrefix() string {
	return c.vars.RedisKeyPrefix
}

func (c Cache) GetRedisOpTimeout() time.Duration {
	return c.vars.RedisOpTimeout
}

func (c Cache) GetRedisTTL() time.Duration {
	return c.vars.RedisTTL
}
