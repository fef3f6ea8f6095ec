package config

import (
	"fmt"
	"strings"
	"time"
)

// envVars is the raw environment surface. Getters below expose it through
// the narrower interfaces each component depends on.
type envVars struct {
	Port        string `env:"PORT"         envDefault:"5000"`
	AppName     string `env:"APP_NAME"     envDefault:"Token Broker"`
	Env         string `env:"ENV"          envDefault:"DEV"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	RedisURL       string        `env:"REDIS_URL"        envDefault:"localhost:6379"`
	RedisIndex     int           `env:"REDIS_INDEX"      envDefault:"-1"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX"`
	RedisOpTimeout time.Duration `env:"REDIS_OP_TIMEOUT" envDefault:"2s"`
	RedisTTL       time.Duration `env:"REDIS_TTL"        envDefault:"0s"`

	SessionTTL           time.Duration `env:"SESSION_TTL"            envDefault:"0s"`
	SessionHeader        string        `env:"SESSION_HEADER"         envDefault:"user-id"`
	SessionCookie        string        `env:"SESSION_COOKIE"         envDefault:"user-id"`
	SessionEncryptionKey string        `env:"SESSION_ENCRYPTION_KEY"`
	StateSecret          string        `env:"STATE_SECRET"`

	GoogleClientID     string   `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string   `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:5000/auth/google/callback"`
	GoogleScopes       []string `env:"GOOGLE_SCOPES"       envSeparator:"," envDefault:"https://www.googleapis.com/auth/contacts.readonly,https://mail.google.com/,https://www.googleapis.com/auth/gmail.readonly"`
	OAuthAuthURL       string   `env:"OAUTH_AUTH_URL"      envDefault:"https://accounts.google.com/o/oauth2/auth"`
	OAuthTokenURL      string   `env:"OAUTH_TOKEN_URL"     envDefault:"https://oauth2.googleapis.com/token"`
	OAuthRevokeURL     string   `env:"OAUTH_REVOKE_URL"    envDefault:"https://oauth2.googleapis.com/revoke"`
	OIDCIssuer         string   `env:"OIDC_ISSUER"`
	GmailAPIURL        string   `env:"GMAIL_API_URL"       envDefault:"https://gmail.googleapis.com"`
	PeopleAPIURL       string   `env:"PEOPLE_API_URL"      envDefault:"https://people.googleapis.com"`

	CorsAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type EnvVars struct {
	vars envVars
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.vars.Port
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.vars.AppName
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.vars.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.vars.LogLevel
}

// GetFrontendURL is where the browser lands after a successful sign-in.
func (e EnvVars) GetFrontendURL() string {
	return e.vars.FrontendURL
}
