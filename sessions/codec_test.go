package sessions_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-broker/cache/cachefake"
	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/sessions"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestJSONCodec(t *testing.T) {
	c := sessions.JSONCodec{}
	creds := sessions.Credentials{AccessToken: "abc", RefreshToken: "def"}

	b, err := c.Encode("id", creds)
	require.NoError(t, err)
	require.JSONEq(t, `{"access_token":"abc","refresh_token":"def"}`, string(b))

	got, err := c.Decode("id", b)
	require.NoError(t, err)
	require.Equal(t, creds, got)

	_, err = c.Decode("id", []byte("not-json"))
	require.ErrorIs(t, err, errs.ErrCorruptSession)
}

func TestSealedCodec(t *testing.T) {
	codec, err := sessions.NewSealedCodec(newKey(t), nil)
	require.NoError(t, err)
	creds := sessions.Credentials{AccessToken: "abc", RefreshToken: "def"}

	sealed, err := codec.Encode("session-1", creds)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "abc")

	t.Run("round trip", func(t *testing.T) {
		got, err := codec.Decode("session-1", sealed)
		require.NoError(t, err)
		require.Equal(t, creds, got)
	})

	t.Run("bound to the session id", func(t *testing.T) {
		_, err := codec.Decode("session-2", sealed)
		require.ErrorIs(t, err, errs.ErrCorruptSession)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tampered := append([]byte(nil), sealed...)
		tampered[len(tampered)-1] ^= 0xff
		_, err := codec.Decode("session-1", tampered)
		require.ErrorIs(t, err, errs.ErrCorruptSession)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := codec.Decode("session-1", sealed[:10])
		require.ErrorIs(t, err, errs.ErrCorruptSession)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := sessions.NewSealedCodec(newKey(t), nil)
		require.NoError(t, err)
		_, err = other.Decode("session-1", sealed)
		require.ErrorIs(t, err, errs.ErrCorruptSession)
	})

	t.Run("bad key size", func(t *testing.T) {
		_, err := sessions.NewSealedCodec([]byte("short"), nil)
		require.Error(t, err)
	})
}

func TestBroker_WithSealedCodec(t *testing.T) {
	ctx := context.Background()
	store := cachefake.NewFakeCache()
	codec, err := sessions.NewSealedCodec(newKey(t), nil)
	require.NoError(t, err)
	broker := sessions.NewBroker(store, sessions.WithCodec(codec))

	id, err := broker.CreateSession(ctx, sessions.Credentials{AccessToken: "abc"})
	require.NoError(t, err)

	raw, found, err := store.GetVal(ctx, sessions.Key(id))
	require.NoError(t, err)
	require.True(t, found)
	require.NotContains(t, string(raw), "abc")

	res := broker.ResolveSession(ctx, id)
	require.True(t, res.LoggedIn())
	require.Equal(t, "abc", res.Credentials.AccessToken)

	// Stored under a key sealed for a different session.
	store.Put(sessions.Key("copied"), raw)
	require.Equal(t, sessions.OutcomeCorrupt, broker.ResolveSession(ctx, "copied").Outcome)
}

func TestParseKey(t *testing.T) {
	key := newKey(t)

	got, err := sessions.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.Equal(t, key, got)

	got, err = sessions.ParseKey(base64.RawURLEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.Equal(t, key, got)

	_, err = sessions.ParseKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	require.ErrorIs(t, err, errs.ErrInvalidConf)

	_, err = sessions.ParseKey("%%%")
	require.ErrorIs(t, err, errs.ErrInvalidConf)
}

func TestCredentials_OAuth2Conversion(t *testing.T) {
	expiry := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)
	tok := (&oauth2.Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       expiry,
	}).WithExtra(map[string]any{"id_token": "id", "scope": "email"})

	creds := sessions.FromOAuth2Token(tok)
	require.Equal(t, sessions.Credentials{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       expiry,
		IDToken:      "id",
		Scope:        "email",
	}, creds)

	back := creds.OAuth2Token()
	require.Equal(t, "access", back.AccessToken)
	require.Equal(t, "refresh", back.RefreshToken)
	require.Equal(t, expiry, back.Expiry)

	require.Equal(t, sessions.Credentials{}, sessions.FromOAuth2Token(nil))
}
