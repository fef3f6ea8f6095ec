package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-token-broker/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyCredentials stores the resolved session credentials
	ContextKeyCredentials ContextKey = "credentials"
)

// RequireSession resolves the session presented with the request and puts
// its credentials on the context. Absent, corrupt and unreachable sessions
// all get the same logged-out response; only the logs tell them apart.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionID := s.sessionIDFromRequest(r)
			res := s.broker.ResolveSession(r.Context(), sessionID)
			if !res.LoggedIn() {
				event := s.log.Debug()
				switch res.Outcome {
				case sessions.OutcomeCorrupt:
					event = s.log.Warn()
				case sessions.OutcomeUnavailable:
					event = s.log.Error()
				}
				event.Err(res.Cause()).
					Str("outcome", res.Outcome.String()).
					Str("path", r.URL.Path).
					Msg("Request without a usable session")
				writeLoggedOut(w)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyCredentials, res.Credentials)
			next(w, r.WithContext(ctx))
		}
	}
}

func credentialsFromContext(ctx context.Context) (*sessions.Credentials, bool) {
	creds, ok := ctx.Value(ContextKeyCredentials).(*sessions.Credentials)
	return creds, ok && creds != nil
}
