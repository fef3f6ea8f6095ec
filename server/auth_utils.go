package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// randRead is the entropy source for generateRandomString.
var randRead = rand.Read

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// setSessionCookie hands the session id to the browser. It is readable by
// script because the frontend sends it back in the session header.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	maxAge := 0
	if ttl := s.config.GetSessionTTL(); ttl > 0 {
		maxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookie(),
		Value:    sessionID,
		Path:     "/",
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookie(),
		Value:    "",
		Path:     "/",
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionIDFromRequest reads the session id from the configured header,
// falling back to the cookie set at sign-in.
func (s *Server) sessionIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(s.config.GetSessionHeader())); id != "" {
		return id
	}
	if cookie, err := r.Cookie(s.config.GetSessionCookie()); err == nil {
		return cookie.Value
	}
	return ""
}

// safeReturnURL only allows redirects back into the frontend.
func (s *Server) safeReturnURL(raw string) string {
	frontend := s.config.GetFrontendURL()
	if raw == "" {
		return frontend
	}
	target, err := url.Parse(raw)
	if err != nil {
		return frontend
	}
	base, err := url.Parse(frontend)
	if err != nil || target.Scheme != base.Scheme || target.Host != base.Host {
		return frontend
	}
	return target.String()
}
