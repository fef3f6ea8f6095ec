package server

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"golang.org/x/oauth2"
)

// NewOAuth2Config builds the provider client configuration. With an OIDC
// issuer configured the endpoints come from discovery and an ID token
// verifier is returned; otherwise the configured endpoints are used and the
// verifier is nil.
func NewOAuth2Config(ctx context.Context, cfg config.ProviderConfig) (*oauth2.Config, *oidc.IDTokenVerifier, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		RedirectURL:  cfg.GetRedirectURL(),
		Scopes:       cfg.GetScopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.GetAuthURL(),
			TokenURL:  cfg.GetTokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	issuer := cfg.GetOIDCIssuer()
	if issuer == "" {
		return oauthConfig, nil, nil
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("[NewOAuth2Config] oidc discovery for %s: %w", issuer, err)
	}
	oauthConfig.Endpoint = provider.Endpoint()
	if !containsScope(oauthConfig.Scopes, oidc.ScopeOpenID) {
		oauthConfig.Scopes = append([]string{oidc.ScopeOpenID}, oauthConfig.Scopes...)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: oauthConfig.ClientID})
	return oauthConfig, verifier, nil
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
