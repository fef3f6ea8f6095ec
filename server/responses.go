package server

import (
	"encoding/json"
	"net/http"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/sessions"
	"github.com/rs/zerolog/log"
)

const msgInternalServerError = "internal server error"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to write response body")
	}
}

// writeLoggedOut is the single response for any request whose session did
// not resolve, whatever the cause.
func writeLoggedOut(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, sessions.Failed(errs.ErrLoggedOut.Error()).WithMessage(msgInternalServerError))
}

func writeFailure(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, sessions.Failed(data).WithMessage(message))
}
