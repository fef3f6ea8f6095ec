package server

import (
	"net/http"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/sessions"
)

// LogoutHandler revokes the provider grant (best effort), deletes the
// session and clears the cookie. It succeeds even without a session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.sessionIDFromRequest(r)
		if sessionID == "" {
			s.clearSessionCookie(w, r)
			writeJSON(w, http.StatusOK, sessions.Success(nil).WithMessage(errs.ErrLoggedOut.Error()))
			return
		}

		if res := s.broker.ResolveSession(r.Context(), sessionID); res.LoggedIn() {
			token := res.Credentials.RefreshToken
			if token == "" {
				token = res.Credentials.AccessToken
			}
			if err := s.api.RevokeToken(r.Context(), token); err != nil {
				s.log.Warn().Err(err).Msg("Failed to revoke provider token")
			}
		}

		if err := s.broker.RevokeSession(r.Context(), sessionID); err != nil {
			s.log.Error().Err(err).Msg("Failed to delete session")
			writeFailure(w, http.StatusInternalServerError, msgInternalServerError, nil)
			return
		}

		s.clearSessionCookie(w, r)
		writeJSON(w, http.StatusOK, sessions.Success(nil).WithMessage(errs.ErrLoggedOut.Error()))
	}
}
