package sessions

import (
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the provider-issued token material held by a session. The
// broker treats it as opaque: it is encoded on write and decoded on read,
// never inspected. Expiry is kept in UTC without a monotonic clock reading,
// the form it has after a JSON round trip.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	IDToken      string    `json:"id_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// FromOAuth2Token copies the fields of an exchanged token, including the
// id_token and scope extras when the provider returned them.
func FromOAuth2Token(t *oauth2.Token) Credentials {
	if t == nil {
		return Credentials{}
	}
	c := Credentials{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry.UTC().Round(0),
	}
	if idToken, ok := t.Extra("id_token").(string); ok {
		c.IDToken = idToken
	}
	if scope, ok := t.Extra("scope").(string); ok {
		c.Scope = scope
	}
	return c
}

// OAuth2Token converts the credentials back into a token usable with an
// oauth2.Config client.
func (c Credentials) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}
