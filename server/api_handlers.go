package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-token-broker/sessions"
	"golang.org/x/oauth2"
)

// InfoHandler returns the signed-in user's mailbox profile.
func (s *Server) InfoHandler() http.HandlerFunc {
	return s.dataHandler(func(ctx context.Context, token *oauth2.Token, r *http.Request) (json.RawMessage, error) {
		return s.api.Profile(ctx, token)
	})
}

// ContactsHandler returns a page of the signed-in user's contacts. Pass the
// previous response's nextPageToken to continue.
func (s *Server) ContactsHandler() http.HandlerFunc {
	return s.dataHandler(func(ctx context.Context, token *oauth2.Token, r *http.Request) (json.RawMessage, error) {
		return s.api.Contacts(ctx, token, r.URL.Query().Get("nextPageToken"))
	})
}

type dataCall func(ctx context.Context, token *oauth2.Token, r *http.Request) (json.RawMessage, error)

func (s *Server) dataHandler(call dataCall) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, ok := credentialsFromContext(r.Context())
		if !ok {
			writeLoggedOut(w)
			return
		}

		data, err := call(r.Context(), creds.OAuth2Token(), r)
		if err != nil {
			s.log.Error().Err(err).Str("path", r.URL.Path).Msg("The API returned an error")
			writeFailure(w, http.StatusInternalServerError, msgInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sessions.Success(data))
	}
}
