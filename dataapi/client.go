package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
	"golang.org/x/oauth2"
)

const (
	contactsPageSize     = 50
	contactsPersonFields = "names,emailAddresses,phoneNumbers,photos"
	maxErrorBody         = 512
)

// Client calls the provider's data APIs on behalf of a user, authenticated
// with the user's stored token.
type Client struct {
	oauth      *oauth2.Config
	gmailURL   string
	peopleURL  string
	revokeURL  string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient sets the transport used for both API calls and token
// refreshes made by the oauth2 package.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithRevokeURL(u string) Option {
	return func(c *Client) {
		c.revokeURL = u
	}
}

func New(oauthConfig *oauth2.Config, gmailURL, peopleURL string, opts ...Option) *Client {
	c := &Client{
		oauth:      oauthConfig,
		gmailURL:   strings.TrimRight(gmailURL, "/"),
		peopleURL:  strings.TrimRight(peopleURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) authorised(ctx context.Context, token *oauth2.Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return c.oauth.Client(ctx, token)
}

// Profile returns the Gmail profile of the token's owner.
func (c *Client) Profile(ctx context.Context, token *oauth2.Token) (json.RawMessage, error) {
	return c.get(ctx, token, c.gmailURL+"/gmail/v1/users/me/profile")
}

// Contacts returns one page of the owner's connections. An empty pageToken
// requests the first page.
func (c *Client) Contacts(ctx context.Context, token *oauth2.Token, pageToken string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("pageSize", fmt.Sprint(contactsPageSize))
	q.Set("personFields", contactsPersonFields)
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	return c.get(ctx, token, c.peopleURL+"/v1/people/me/connections?"+q.Encode())
}

func (c *Client) get(ctx context.Context, token *oauth2.Token, endpoint string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.authorised(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, providerError(req.URL.Path, resp.StatusCode, body)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s returned invalid json", errs.ErrProviderResponse, req.URL.Path)
	}
	return json.RawMessage(body), nil
}

// RevokeToken asks the provider to invalidate token. Revoking a refresh token
// also invalidates the access tokens minted from it.
func (c *Client) RevokeToken(ctx context.Context, token string) error {
	if c.revokeURL == "" || token == "" {
		return nil
	}
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return providerError(req.URL.Path, resp.StatusCode, body)
	}
	return nil
}

func providerError(path string, status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Errorf("%w: %s returned %d: %s", errs.ErrProviderResponse, path, status, strings.TrimSpace(string(body)))
}
