package config

type ProviderConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetScopes() []string
	GetAuthURL() string
	GetTokenURL() string
	GetRevokeURL() string
	GetOIDCIssuer() string
	GetGmailAPIURL() string
	GetPeopleAPIURL() string
}

type Provider struct {
	vars envVars
}

var _ ProviderConfig = Provider{}

func (p Provider) GetClientID() string {
	return p.vars.GoogleClientID
}

func (p Provider) GetClientSecret() string {
	return p.vars.GoogleClientSecret
}

func (p Provider) GetRedirectURL() string {
	return p.vars.GoogleRedirectURL
}

func (p Provider) GetScopes() []string {
	return p.vars.GoogleScopes
}

func (p Provider) GetAuthURL() string {
	return p.vars.OAuthAuthURL
}

func (p Provider) GetTokenURL() string {
	return p.vars.OAuthTokenURL
}

func (p Provider) GetRevokeURL() string {
	return p.vars.OAuthRevokeURL
}

// GetOIDCIssuer enables discovery and ID token verification when set
// (e.g. "https://accounts.google.com").
func (p Provider) GetOIDCIssuer() string {
	return p.vars.OIDCIssuer
}

func (p Provider) GetGmailAPIURL() string {
	return p.vars.GmailAPIURL
}

func (p Provider) GetPeopleAPIURL() string {
	return p.vars.PeopleAPIURL
}
