package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	CacheConfig
	SessionConfig
	ProviderConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetFrontendURL() string
}

type CacheConfig interface {
	GetRedisURL() string
	GetRedisIndex() int
	GetRedisKeyPrefix() string
	GetRedisOpTimeout() time.Duration
	GetRedisTTL() time.Duration
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cache
	Session
	Provider
	Cors
}

var _ Config = mainConfig{}

// New reads the configuration from the process environment.
func New() (Config, error) {
	var vars envVars
	if err := env.Parse(&vars); err != nil {
		return nil, fmt.Errorf("[config New] parse env: %w", err)
	}
	return fromVars(vars), nil
}

// NewFromMap builds a configuration from an explicit variable map, falling
// back to defaults for anything not present. Used by tools and tests.
func NewFromMap(vars map[string]string) (Config, error) {
	var parsed envVars
	if err := env.ParseWithOptions(&parsed, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("[config NewFromMap] parse env: %w", err)
	}
	return fromVars(parsed), nil
}

func fromVars(v envVars) mainConfig {
	return mainConfig{
		EnvVars:  EnvVars{vars: v},
		Cache:    Cache{vars: v},
		Session:  Session{vars: v},
		Provider: Provider{vars: v},
		Cors:     newCors(v.CorsAllowedOrigins),
	}
}
