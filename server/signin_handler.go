package server

import (
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-broker/server/authflowrepo"
	"golang.org/x/oauth2"
)

// SignInHandler starts the authorization code flow: it records a pending
// flow (PKCE verifier, nonce, return URL) and redirects to the provider.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flowID := uuid.NewString()
		flow := &authflowrepo.AuthFlowState{
			CodeVerifier: oauth2.GenerateVerifier(),
			ReturnURL:    s.safeReturnURL(r.URL.Query().Get("return_to")),
			CreatedAt:    time.Now(),
		}
		if s.verifier != nil {
			nonce, err := generateRandomString(16)
			if err != nil {
				s.log.Error().Err(err).Msg("Failed to generate nonce")
				writeFailure(w, http.StatusInternalServerError, msgInternalServerError, nil)
				return
			}
			flow.Nonce = nonce
		}

		if err := s.flows.Upsert(r.Context(), flowID, flow); err != nil {
			s.log.Error().Err(err).Msg("Failed to store sign-in flow")
			writeFailure(w, http.StatusInternalServerError, msgInternalServerError, nil)
			return
		}

		state, err := s.state.Sign(flowID)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to sign state")
			writeFailure(w, http.StatusInternalServerError, msgInternalServerError, nil)
			return
		}

		opts := []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.S256ChallengeOption(flow.CodeVerifier),
		}
		if flow.Nonce != "" {
			opts = append(opts, oidc.Nonce(flow.Nonce))
		}
		http.Redirect(w, r, s.oauth.AuthCodeURL(state, opts...), http.StatusFound)
	}
}
