package config

import "time"

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetSessionHeader() string
	GetSessionCookie() string
	GetSessionEncryptionKey() string
	GetStateSecret() string
	GetStateTTL() time.Duration
}

type Session struct {
	vars envVars
}

var _ SessionConfig = Session{}

// GetSessionTTL of zero keeps sessions until they are revoked.
func (s Session) GetSessionTTL() time.Duration {
	return s.vars.SessionTTL
}

func (s Session) GetSessionHeader() string {
	return s.vars.SessionHeader
}

func (s Session) GetSessionCookie() string {
	return s.vars.SessionCookie
}

// GetSessionEncryptionKey is a base64 encoded 32 byte key. Empty disables
// sealing of stored credentials.
func (s Session) GetSessionEncryptionKey() string {
	return s.vars.SessionEncryptionKey
}

// GetStateSecret signs the OAuth state parameter. Empty means a random key
// is generated at startup, which invalidates in-flight sign-ins on restart.
func (s Session) GetStateSecret() string {
	return s.vars.StateSecret
}

func (Session) GetStateTTL() time.Duration {
	return 10 * time.Minute
}
