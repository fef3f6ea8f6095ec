package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/rs/zerolog"
)

const (
	keyPrefix         = "session:"
	maxCreateAttempts = 3
)

// Store is the part of the key-value store the broker needs.
type Store interface {
	SetValIfAbsent(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	GetVal(ctx context.Context, key string) ([]byte, bool, error)
	ClearKeys(ctx context.Context, keys ...string) (int64, error)
}

// PersistenceError means a session could not be written. The user must not
// be treated as signed in.
type PersistenceError struct {
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v: %v", errs.ErrPersistence, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

func (e *PersistenceError) Is(target error) bool {
	return target == errs.ErrPersistence
}

// Broker maps opaque session ids to stored credentials. Sessions are written
// once and read many times; the only mutation is revocation.
type Broker struct {
	store Store
	codec Codec
	ttl   time.Duration
	newID func() (string, error)
	log   zerolog.Logger
}

type Option func(*Broker)

func WithCodec(codec Codec) Option {
	return func(b *Broker) {
		b.codec = codec
	}
}

// WithSessionTTL makes sessions expire after ttl. Zero keeps them until they
// are revoked.
func WithSessionTTL(ttl time.Duration) Option {
	return func(b *Broker) {
		b.ttl = ttl
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Broker) {
		b.log = logger
	}
}

// WithIDGenerator replaces the random session id source.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(b *Broker) {
		b.newID = gen
	}
}

func NewBroker(store Store, opts ...Option) *Broker {
	b := &Broker{
		store: store,
		codec: JSONCodec{},
		newID: newSessionID,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// newSessionID returns a version 4 UUID: 122 random bits from crypto/rand.
func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Key is the store key a session id is kept under.
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// Fingerprint is a short, non-reversible tag for a session id that is safe to
// put in logs.
func Fingerprint(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:6])
}

// CreateSession stores creds under a freshly generated session id and returns
// the id. Any failure is a *PersistenceError.
func (b *Broker) CreateSession(ctx context.Context, creds Credentials) (string, error) {
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		id, err := b.newID()
		if err != nil {
			return "", &PersistenceError{Cause: fmt.Errorf("generate session id: %w", err)}
		}

		payload, err := b.codec.Encode(id, creds)
		if err != nil {
			return "", &PersistenceError{Cause: fmt.Errorf("encode credentials: %w", err)}
		}

		written, err := b.store.SetValIfAbsent(ctx, Key(id), payload, b.ttl)
		if err != nil {
			b.log.Error().Err(err).Msg("failed to store session")
			return "", &PersistenceError{Cause: err}
		}
		if written {
			b.log.Debug().Str("session", Fingerprint(id)).Msg("session created")
			return id, nil
		}
		b.log.Warn().Int("attempt", attempt).Msg("session id collision, regenerating")
	}
	return "", &PersistenceError{Cause: errs.New("could not allocate a unique session id")}
}

// ResolveSession looks up the credentials for sessionID. It never returns an
// error: absence, corruption and store failure are all reported through the
// Resolution outcome, with the cause kept for logging.
func (b *Broker) ResolveSession(ctx context.Context, sessionID string) Resolution {
	if sessionID == "" {
		return Resolution{Outcome: OutcomeAbsent}
	}

	raw, found, err := b.store.GetVal(ctx, Key(sessionID))
	if err != nil {
		b.log.Error().Err(err).Str("session", Fingerprint(sessionID)).Msg("session store unavailable")
		return Resolution{Outcome: OutcomeUnavailable, Err: err}
	}
	if !found {
		b.log.Debug().Str("session", Fingerprint(sessionID)).Msg("session not found")
		return Resolution{Outcome: OutcomeAbsent}
	}

	creds, err := b.codec.Decode(sessionID, raw)
	if err != nil {
		if !errs.Is(err, errs.ErrCorruptSession) {
			err = fmt.Errorf("%w: %v", errs.ErrCorruptSession, err)
		}
		b.log.Error().Err(err).Str("session", Fingerprint(sessionID)).Msg("stored session failed to decode")
		return Resolution{Outcome: OutcomeCorrupt, Err: err}
	}
	return Resolution{Outcome: OutcomeFound, Credentials: &creds}
}

// RevokeSession deletes the session. Revoking an unknown id succeeds.
func (b *Broker) RevokeSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := b.store.ClearKeys(ctx, Key(sessionID)); err != nil {
		return errs.Wrapf(err, "[Broker RevokeSession] clear session")
	}
	b.log.Debug().Str("session", Fingerprint(sessionID)).Msg("session revoked")
	return nil
}
