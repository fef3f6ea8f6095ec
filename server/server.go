package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-token-broker/internal/config"
	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/server/authflowrepo"
	"github.com/jrsteele09/go-token-broker/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// SessionBroker creates and resolves sessions for signed-in users.
type SessionBroker interface {
	CreateSession(ctx context.Context, creds sessions.Credentials) (string, error)
	ResolveSession(ctx context.Context, sessionID string) sessions.Resolution
	RevokeSession(ctx context.Context, sessionID string) error
}

// DataAPI is the provider API called with a resolved session's token.
type DataAPI interface {
	Profile(ctx context.Context, token *oauth2.Token) (json.RawMessage, error)
	Contacts(ctx context.Context, token *oauth2.Token, pageToken string) (json.RawMessage, error)
	RevokeToken(ctx context.Context, token string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server is built from. Verifier and Metrics
// are optional.
type Deps struct {
	Broker   SessionBroker
	Flows    authflowrepo.Repo
	OAuth    *oauth2.Config
	Verifier *oidc.IDTokenVerifier
	API      DataAPI
	Health   Pinger
	Metrics  prometheus.Gatherer
	Logger   zerolog.Logger
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	log    zerolog.Logger

	broker   SessionBroker
	flows    authflowrepo.Repo
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	api      DataAPI
	health   Pinger
	metrics  prometheus.Gatherer
	state    *stateSigner
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	switch {
	case deps.Broker == nil:
		return nil, errs.New("[Server New] session broker is required")
	case deps.Flows == nil:
		return nil, errs.New("[Server New] auth flow repo is required")
	case deps.OAuth == nil:
		return nil, errs.New("[Server New] oauth2 config is required")
	case deps.API == nil:
		return nil, errs.New("[Server New] data api is required")
	case deps.Health == nil:
		return nil, errs.New("[Server New] health check is required")
	}

	secret := []byte(cfg.GetStateSecret())
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("[Server New] generate state secret: %w", err)
		}
		deps.Logger.Warn().Msg("STATE_SECRET not set, using a random key; pending sign-ins will not survive a restart")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		log:      deps.Logger,
		broker:   deps.Broker,
		flows:    deps.Flows,
		oauth:    deps.OAuth,
		verifier: deps.Verifier,
		api:      deps.API,
		health:   deps.Health,
		metrics:  deps.Metrics,
		state:    newStateSigner(secret, cfg.GetAppName(), cfg.GetStateTTL()),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		color, ok := methodColors[method]
		if !ok {
			color = Gray
		}
		s.log.Info().Msgf("[%s %-7s%s] %s", color, method, ResetColor, path)
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
