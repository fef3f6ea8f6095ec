package server

import (
	"context"
	"fmt"
	"net/http"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/server/authflowrepo"
	"github.com/jrsteele09/go-token-broker/sessions"
	"golang.org/x/oauth2"
)

const msgSaveFailed = "error in saving credentials"

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")

		// Check for authorization errors
		if errorParam != "" {
			s.log.Warn().Str("error", errorParam).Str("description", r.FormValue("error_description")).Msg("Authorization denied by provider")
			writeFailure(w, http.StatusBadRequest, "authorization failed", errorParam)
			return
		}

		if code == "" || state == "" {
			writeFailure(w, http.StatusBadRequest, errs.ErrMissingCode.Error(), nil)
			return
		}

		flow, err := s.consumeFlow(r.Context(), state)
		if err != nil {
			s.log.Warn().Err(err).Msg("Rejected callback state")
			writeFailure(w, http.StatusBadRequest, errs.ErrInvalidState.Error(), nil)
			return
		}

		token, err := s.exchange(r.Context(), code, flow)
		if err != nil {
			s.log.Error().Err(err).Msg("Error authenticating")
			writeFailure(w, http.StatusBadGateway, "error authenticating", nil)
			return
		}

		sessionID, err := s.broker.CreateSession(r.Context(), sessions.FromOAuth2Token(token))
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to create session")
			writeFailure(w, http.StatusInternalServerError, msgSaveFailed, nil)
			return
		}

		s.log.Info().Str("session", sessions.Fingerprint(sessionID)).Msg("Successfully authenticated")
		s.setSessionCookie(w, r, sessionID)

		returnURL := flow.ReturnURL
		if returnURL == "" {
			returnURL = s.config.GetFrontendURL()
		}
		http.Redirect(w, r, returnURL, http.StatusFound)
	}
}

// consumeFlow verifies the signed state and takes the pending flow it names.
// The take is atomic, so each state is usable once even under concurrent
// callbacks.
func (s *Server) consumeFlow(ctx context.Context, state string) (*authflowrepo.AuthFlowState, error) {
	flowID, err := s.state.Verify(state)
	if err != nil {
		return nil, err
	}
	flow, err := s.flows.Take(ctx, flowID)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: flow already used or expired", errs.ErrInvalidState)
		}
		return nil, err
	}
	return flow, nil
}

// exchange trades the authorization code for tokens and, when an ID token
// verifier is configured, checks the ID token and its nonce.
func (s *Server) exchange(ctx context.Context, code string, flow *authflowrepo.AuthFlowState) (*oauth2.Token, error) {
	token, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTokenExchange, err)
	}
	if s.verifier == nil {
		return token, nil
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: no id_token in response", errs.ErrInvalidIDToken)
	}
	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidIDToken, err)
	}
	if idToken.Nonce != flow.Nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", errs.ErrInvalidIDToken)
	}
	return token, nil
}
