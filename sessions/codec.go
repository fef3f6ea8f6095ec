package sessions

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Codec turns credentials into the bytes kept in the store and back. The
// session id is passed so implementations can bind a payload to its key.
type Codec interface {
	Encode(sessionID string, c Credentials) ([]byte, error)
	Decode(sessionID string, data []byte) (Credentials, error)
}

// JSONCodec stores credentials as a plain JSON document.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

func (JSONCodec) Encode(_ string, c Credentials) ([]byte, error) {
	return json.Marshal(c)
}

func (JSONCodec) Decode(_ string, data []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", errs.ErrCorruptSession, err)
	}
	return c, nil
}

// SealedCodec encrypts the output of an inner codec with XChaCha20-Poly1305.
// The session id is used as additional data so a payload copied under a
// different key fails to open.
type SealedCodec struct {
	aead  cipher.AEAD
	inner Codec
}

var _ Codec = (*SealedCodec)(nil)

// NewSealedCodec wraps inner with a 32 byte key. A nil inner means JSON.
func NewSealedCodec(key []byte, inner Codec) (*SealedCodec, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("[sessions NewSealedCodec] %w", err)
	}
	if inner == nil {
		inner = JSONCodec{}
	}
	return &SealedCodec{aead: aead, inner: inner}, nil
}

// ParseKey decodes a base64 (standard or URL alphabet) session encryption key.
func ParseKey(encoded string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		key, err := enc.DecodeString(encoded)
		if err != nil {
			continue
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("session key must be %d bytes, got %d: %w", chacha20poly1305.KeySize, len(key), errs.ErrInvalidConf)
		}
		return key, nil
	}
	return nil, fmt.Errorf("session key is not valid base64: %w", errs.ErrInvalidConf)
}

func (s *SealedCodec) Encode(sessionID string, c Credentials) ([]byte, error) {
	plain, err := s.inner.Encode(sessionID, c)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, []byte(sessionID)), nil
}

func (s *SealedCodec) Decode(sessionID string, data []byte) (Credentials, error) {
	if len(data) < s.aead.NonceSize()+s.aead.Overhead() {
		return Credentials{}, fmt.Errorf("%w: sealed payload too short", errs.ErrCorruptSession)
	}
	nonce, sealed := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, sealed, []byte(sessionID))
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", errs.ErrCorruptSession, err)
	}
	return s.inner.Decode(sessionID, plain)
}
