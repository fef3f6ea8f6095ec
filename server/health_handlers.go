package server

import (
	"net/http"

	"github.com/jrsteele09/go-token-broker/sessions"
)

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.health.Ping(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Health check failed")
			writeFailure(w, http.StatusServiceUnavailable, "store unavailable", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessions.Success("ok"))
	}
}
