package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	errs "github.com/jrsteele09/go-token-broker/internal/errors"
)

// stateSigner issues the OAuth state parameter as a short-lived HS256 JWT
// whose ID is the pending flow's key. A forged or stale state never reaches
// the flow store.
type stateSigner struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func newStateSigner(key []byte, issuer string, ttl time.Duration) *stateSigner {
	return &stateSigner{key: key, issuer: issuer, ttl: ttl, now: time.Now}
}

func (s *stateSigner) Sign(flowID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        flowID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Verify returns the flow id carried by a valid state.
func (s *stateSigner) Verify(state string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidState, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing flow id", errs.ErrInvalidState)
	}
	return claims.ID, nil
}
